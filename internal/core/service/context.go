package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

// txContext binds one open transaction, its handle and its timed statement
// log to an identity between Watch and Defer. Instances are pooled.
type txContext struct {
	mu       sync.Mutex
	id       uuid.UUID
	identity domain.Identity
	created  time.Time
	handle   port.Handle
	costs    []*domain.Cost
}

func (tc *txContext) Handle() port.Handle {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.handle
}

func (tc *txContext) setHandle(h port.Handle) {
	tc.mu.Lock()
	tc.handle = h
	tc.mu.Unlock()
}

func (tc *txContext) appendCost(c *domain.Cost) {
	tc.mu.Lock()
	tc.costs = append(tc.costs, c)
	tc.mu.Unlock()
}

// finishLast stamps the end of the most recent statement. Statements of one
// identity never interleave, so the last record is the one executing.
func (tc *txContext) finishLast(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if n := len(tc.costs); n > 0 {
		tc.costs[n-1].End = t
	}
}

func (tc *txContext) snapshot() []*domain.Cost {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]*domain.Cost, len(tc.costs))
	copy(out, tc.costs)
	return out
}

// reset clears tc and hands every cost back to costs. tc itself is then
// ready to be returned to its own pool.
func (tc *txContext) reset(put func(*domain.Cost)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for i, c := range tc.costs {
		c.Reset()
		put(c)
		tc.costs[i] = nil
	}
	tc.costs = tc.costs[:0]
	tc.handle = nil
	tc.id = uuid.Nil
	tc.identity = domain.Identity{}
	tc.created = time.Time{}
}
