package service

import (
	"context"
	"time"

	"github.com/guillermoBallester/txscope/internal/core/port"
)

var _ port.ExecHooks = (*Coordinator)(nil)

// OnExecuting records the start of a statement against the caller's context.
// The deferring registry is consulted after the active one so the commit's
// own statements are attributed. Without a context this is a no-op.
func (c *Coordinator) OnExecuting(ctx context.Context, statement string) {
	tc := c.lookup(ctx)
	if tc == nil {
		return
	}
	cost := c.costs.Get()
	cost.Statement = statement
	cost.Start = time.Now()
	tc.appendCost(cost)
}

// OnExecuted stamps the end of the caller's most recent statement.
func (c *Coordinator) OnExecuted(ctx context.Context) {
	tc := c.lookup(ctx)
	if tc == nil {
		return
	}
	tc.finishLast(time.Now())
}

func (c *Coordinator) lookup(ctx context.Context) *txContext {
	id := c.resolver.Resolve(ctx)
	if !id.IsBound() {
		return nil
	}
	if v, ok := c.active.Load(id); ok {
		return v.(*txContext)
	}
	if v, ok := c.deferring.Load(id); ok {
		return v.(*txContext)
	}
	return nil
}
