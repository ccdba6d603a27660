package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

// QueryService is the CRUD facade. Every call borrows the coordinator's
// current handle: inside a Watch/Defer bracket it joins the open transaction
// and is timed; outside one it runs autocommit and untracked on an ad-hoc
// handle that is closed when the call returns. Insert, Update, Delete and
// Query reject a statement classified under a different category; statements
// the classifier cannot place are passed through.
type QueryService struct {
	coord  *Coordinator
	logger *slog.Logger
}

func NewQueryService(coord *Coordinator, logger *slog.Logger) *QueryService {
	return &QueryService{coord: coord, logger: logger}
}

// Insert executes an INSERT statement and returns the rows affected.
func (s *QueryService) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec(ctx, domain.CategoryInsert, query, args)
}

// Update executes an UPDATE statement and returns the rows affected.
func (s *QueryService) Update(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec(ctx, domain.CategoryUpdate, query, args)
}

// Delete executes a DELETE statement and returns the rows affected.
func (s *QueryService) Delete(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec(ctx, domain.CategoryDelete, query, args)
}

// Exec executes a statement of any kind and returns the rows affected.
func (s *QueryService) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	h, release, err := s.coord.borrow(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return execOn(ctx, h, "statement", query, args)
}

// Query executes a SELECT statement and returns its rows.
func (s *QueryService) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	h, release, err := s.coord.borrow(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := s.check(ctx, h, domain.CategoryQuery, query); err != nil {
		return nil, err
	}

	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

func (s *QueryService) exec(ctx context.Context, want domain.Category, query string, args []any) (int64, error) {
	h, release, err := s.coord.borrow(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	if err := s.check(ctx, h, want, query); err != nil {
		return 0, err
	}
	return execOn(ctx, h, want.String(), query, args)
}

func execOn(ctx context.Context, h port.Handle, op, query string, args []any) (int64, error) {
	res, err := h.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

func (s *QueryService) check(ctx context.Context, h port.Handle, want domain.Category, query string) error {
	got := s.coord.classifier(h.Descriptor().Kind).Classify(query)
	// Other means the classifier could not tell, e.g. a CTE or a leading
	// comment under the prefix classifier.
	if got == want || got == domain.CategoryOther {
		return nil
	}
	s.logger.WarnContext(ctx, "statement rejected",
		slog.String("db.operation.name", want.String()),
		slog.String("db.statement", query),
		slog.String("error.type", "statement_mismatch"),
	)
	return fmt.Errorf("%w: %s called with %s statement", domain.ErrStatementMismatch, want, got)
}
