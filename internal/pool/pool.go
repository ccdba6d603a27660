// Package pool provides an explicit free list for reusable objects.
package pool

import "sync"

// Pool is a typed free list. Objects handed to Put must already be reset to
// their zero state; the pool never cleans them. Unlike sync.Pool, idle
// objects are retained until reused, never evicted by the garbage collector.
type Pool[T any] struct {
	newFn   func() *T
	maxIdle int

	mu     sync.Mutex
	free   []*T
	allocs uint64
	reuses uint64
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	maxIdle int
}

// WithMaxIdle caps the number of idle objects retained. Objects put beyond
// the cap are dropped. Zero means unbounded.
func WithMaxIdle(n int) Option {
	return func(o *options) { o.maxIdle = n }
}

// New returns a Pool that constructs objects with newFn when empty. A nil
// newFn allocates with new(T).
func New[T any](newFn func() *T, opts ...Option) *Pool[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if newFn == nil {
		newFn = func() *T { return new(T) }
	}
	return &Pool[T]{newFn: newFn, maxIdle: o.maxIdle}
}

// Get pops an idle object or constructs a new one.
func (p *Pool[T]) Get() *T {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		x := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.reuses++
		p.mu.Unlock()
		return x
	}
	p.allocs++
	p.mu.Unlock()
	return p.newFn()
}

// Put returns x to the free list. Nil is ignored.
func (p *Pool[T]) Put(x *T) {
	if x == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxIdle > 0 && len(p.free) >= p.maxIdle {
		return
	}
	p.free = append(p.free, x)
}

// Stats is a point-in-time view of pool usage.
type Stats struct {
	Allocs uint64
	Reuses uint64
	Idle   int
}

func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Allocs: p.allocs, Reuses: p.reuses, Idle: len(p.free)}
}
