package sqldb

import (
	"context"
	"database/sql"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

const commitStatement = "COMMIT"

var _ port.Handle = (*InstrumentedConn)(nil)

// InstrumentedConn wraps a Handle and reports every statement, and the
// commit, to hooks. For queries the measured span ends when the rows are
// returned, not when they are drained.
type InstrumentedConn struct {
	inner port.Handle
	hooks port.ExecHooks
}

func NewInstrumentedConn(inner port.Handle, hooks port.ExecHooks) *InstrumentedConn {
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &InstrumentedConn{inner: inner, hooks: hooks}
}

func (c *InstrumentedConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.hooks.OnExecuting(ctx, query)
	defer c.hooks.OnExecuted(ctx)
	return c.inner.ExecContext(ctx, query, args...)
}

func (c *InstrumentedConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.hooks.OnExecuting(ctx, query)
	defer c.hooks.OnExecuted(ctx)
	return c.inner.QueryContext(ctx, query, args...)
}

func (c *InstrumentedConn) Begin(ctx context.Context) error {
	return c.inner.Begin(ctx)
}

func (c *InstrumentedConn) Commit(ctx context.Context) error {
	c.hooks.OnExecuting(ctx, commitStatement)
	defer c.hooks.OnExecuted(ctx)
	return c.inner.Commit(ctx)
}

func (c *InstrumentedConn) Rollback(ctx context.Context) error {
	return c.inner.Rollback(ctx)
}

func (c *InstrumentedConn) Close() error {
	return c.inner.Close()
}

func (c *InstrumentedConn) Descriptor() domain.Descriptor {
	return c.inner.Descriptor()
}

type noopHooks struct{}

func (noopHooks) OnExecuting(context.Context, string) {}
func (noopHooks) OnExecuted(context.Context)          {}
