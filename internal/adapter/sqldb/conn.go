package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

var (
	ErrTxActive      = errors.New("transaction already active")
	ErrNoTransaction = errors.New("no active transaction")
	ErrAdHocTx       = errors.New("ad-hoc handles cannot begin transactions")
)

var _ port.Handle = (*Conn)(nil)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is a handle over either a pinned *sql.Conn, which can carry one
// transaction at a time, or the pool itself for ad-hoc use.
type Conn struct {
	desc domain.Descriptor
	conn *sql.Conn
	db   *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

func newPinned(d domain.Descriptor, conn *sql.Conn) *Conn {
	return &Conn{desc: d, conn: conn}
}

func newAdHoc(d domain.Descriptor, db *sql.DB) *Conn {
	return &Conn{desc: d, db: db}
}

func (c *Conn) target() querier {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx
	}
	if c.conn != nil {
		return c.conn
	}
	return c.db
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.target().ExecContext(ctx, query, args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.target().QueryContext(ctx, query, args...)
}

// Begin opens a transaction on the pinned connection. The transaction is
// detached from ctx cancellation; it ends only with Commit or Rollback.
func (c *Conn) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrAdHocTx
	}
	if c.tx != nil {
		return ErrTxActive
	}
	tx, err := c.conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

// Rollback aborts the open transaction, if any.
func (c *Conn) Rollback(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbackLocked()
}

func (c *Conn) rollbackLocked() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Close rolls back any open transaction and returns the pinned connection to
// its pool. Closing an ad-hoc handle is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	rbErr := c.rollbackLocked()
	err := c.conn.Close()
	if errors.Is(err, sql.ErrConnDone) {
		err = nil
	}
	return errors.Join(rbErr, err)
}

func (c *Conn) Descriptor() domain.Descriptor { return c.desc }
