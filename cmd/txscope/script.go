package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/service"
)

// scriptRunner runs every statement of a script inside one context.
type scriptRunner struct {
	coord      *service.Coordinator
	facade     *service.QueryService
	logger     *slog.Logger
	statements []string
}

// run brackets the script in Watch/Defer. A failed statement stops the
// script; whatever ran before it is still deferred.
func (r *scriptRunner) run(ctx context.Context) (err error) {
	ctx, err = r.coord.Watch(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if deferErr := r.coord.Defer(ctx); err == nil {
			err = deferErr
		}
	}()

	for _, stmt := range r.statements {
		if err := r.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *scriptRunner) exec(ctx context.Context, stmt string) error {
	var err error
	switch domain.ClassifyPrefix(stmt) {
	case domain.CategoryInsert:
		_, err = r.facade.Insert(ctx, stmt)
	case domain.CategoryUpdate:
		_, err = r.facade.Update(ctx, stmt)
	case domain.CategoryDelete:
		_, err = r.facade.Delete(ctx, stmt)
	case domain.CategoryQuery:
		var rows []map[string]any
		rows, err = r.facade.Query(ctx, stmt)
		if err == nil {
			r.logger.DebugContext(ctx, "query returned", slog.Int("rows", len(rows)))
		}
	default:
		_, err = r.facade.Exec(ctx, stmt)
	}
	if err != nil {
		return fmt.Errorf("statement %q: %w", abbreviate(stmt, 60), err)
	}
	return nil
}

// splitStatements splits a script on semicolons outside quoted text. "--"
// comments run to the end of the line and are dropped, as are blank
// statements.
func splitStatements(script string) []string {
	var (
		out     []string
		b       strings.Builder
		quote   rune
		comment bool
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(script)
	for i, r := range runes {
		switch {
		case comment:
			if r != '\n' {
				continue
			}
			comment = false
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			continue
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
