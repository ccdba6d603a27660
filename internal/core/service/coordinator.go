package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
	"github.com/guillermoBallester/txscope/internal/pool"
	"github.com/guillermoBallester/txscope/internal/source"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Coordinator shares one open transaction per active identity among the call
// sites running under it, and times every statement those call sites issue.
//
// Each identity owns at most one context in the active registry. During
// commit the context sits in the deferring registry instead, so statements
// issued by the commit itself are still attributed to it.
type Coordinator struct {
	sources  *source.Registry
	opener   port.Opener
	resolver Resolver
	expand   source.Expander

	logger      *slog.Logger
	tracer      trace.Tracer
	inst        port.Instrumentation
	auditor     port.ContextAuditor
	classifiers map[domain.DbKind]domain.Classifier

	contexts *pool.Pool[txContext]
	costs    *pool.Pool[domain.Cost]

	active    sync.Map // domain.Identity -> *txContext
	deferring sync.Map // domain.Identity -> *txContext

	slots []slotEntry
	flows atomic.Uint64
}

// slotEntry caches the handle shared by every logical task on one slot. The
// handle outlives individual contexts. mu serializes its creation, the start
// of each bracket and the commit and cleanup that end it.
type slotEntry struct {
	mu     sync.Mutex
	handle port.Handle
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithInstrumentation(inst port.Instrumentation) Option {
	return func(c *Coordinator) {
		if inst != nil {
			c.inst = inst
		}
	}
}

func WithAuditor(a port.ContextAuditor) Option {
	return func(c *Coordinator) {
		if a != nil {
			c.auditor = a
		}
	}
}

// WithClassifier sets the statement classifier for one database kind.
func WithClassifier(kind domain.DbKind, cl domain.Classifier) Option {
	return func(c *Coordinator) {
		c.classifiers[kind] = cl
	}
}

// WithExpander sets the variable substitution applied to source addresses.
func WithExpander(e source.Expander) Option {
	return func(c *Coordinator) {
		c.expand = e
	}
}

// WithPoolMaxIdle caps the idle Context and Cost objects kept for reuse.
func WithPoolMaxIdle(n int) Option {
	return func(c *Coordinator) {
		c.contexts = pool.New[txContext](nil, pool.WithMaxIdle(n))
		c.costs = pool.New[domain.Cost](nil, pool.WithMaxIdle(n))
	}
}

// NewCoordinator builds a coordinator with an empty source registry. slots
// may be nil when no cooperative scheduler is in play.
func NewCoordinator(opener port.Opener, slots port.SlotSource, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		sources:     source.NewRegistry(),
		opener:      opener,
		resolver:    NewResolver(slots),
		logger:      logger,
		tracer:      noop.NewTracerProvider().Tracer("noop"),
		inst:        port.NoopInstrumentation{},
		auditor:     noopAuditor{},
		classifiers: make(map[domain.DbKind]domain.Classifier),
		contexts:    pool.New[txContext](nil),
		costs:       pool.New[domain.Cost](nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.slots = make([]slotEntry, c.resolver.SlotCount())
	return c
}

// Initialize validates settings and replaces the source registry with the
// result. On error the previous registry stays in place.
func (c *Coordinator) Initialize(settings source.Settings) error {
	descriptors, err := source.Build(settings, c.expand)
	if err != nil {
		return err
	}
	c.sources.Reset(descriptors)

	c.logger.Info("sources initialized", slog.Int("count", len(descriptors)))
	for _, d := range descriptors {
		c.logger.Debug("source admitted",
			slog.String("alias", d.Alias),
			slog.String("db.system", d.Kind.String()),
			slog.String("connection", d.Redacted()),
			slog.Bool("auto_close", d.AutoClose),
		)
	}
	return nil
}

// Sources returns the admitted descriptors in configuration order.
func (c *Coordinator) Sources() []domain.Descriptor {
	return c.sources.Sources()
}

// Watch opens a context for the caller's identity unless one is already
// active, in which case it returns without change: nested Watch calls share
// the outer transaction. Callers outside the scheduler get a flow identity
// stamped into the returned ctx, which they pass to every later call in the
// bracket, including Defer.
func (c *Coordinator) Watch(ctx context.Context) (context.Context, error) {
	id := c.resolver.Resolve(ctx)
	if !id.IsBound() {
		id = domain.FlowIdentity(c.flows.Add(1))
		ctx = withFlow(ctx, id.Flow)
	}
	if _, ok := c.active.Load(id); ok {
		return ctx, nil
	}

	desc, err := c.sources.Default()
	if err != nil {
		return ctx, err
	}

	var tc *txContext
	if id.IsSlot() {
		tc, err = c.watchSlot(ctx, id, desc)
	} else {
		tc, err = c.watchFlow(ctx, id, desc)
	}
	if err != nil {
		return ctx, err
	}
	if tc != nil {
		c.logger.InfoContext(ctx, "context watched",
			slog.String("context.id", tc.id.String()),
			slog.String("identity", id.String()),
			slog.String("source", desc.Alias),
			slog.String("db.system", desc.Kind.String()),
		)
	}
	return ctx, nil
}

func (c *Coordinator) watchFlow(ctx context.Context, id domain.Identity, desc domain.Descriptor) (*txContext, error) {
	tc := c.acquire(id)

	h, err := c.opener.Open(ctx, desc, c)
	if err != nil {
		c.release(tc)
		return nil, fmt.Errorf("opening source %q: %w", desc.Alias, err)
	}
	if err := h.Begin(ctx); err != nil {
		_ = h.Close()
		c.release(tc)
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	tc.setHandle(h)

	if _, loaded := c.active.LoadOrStore(id, tc); loaded {
		// Two goroutines sharing one flow ctx raced into Watch.
		_ = h.Close()
		c.release(tc)
		return nil, nil
	}
	return tc, nil
}

func (c *Coordinator) watchSlot(ctx context.Context, id domain.Identity, desc domain.Descriptor) (*txContext, error) {
	e := &c.slots[id.Slot]
	e.mu.Lock()
	defer e.mu.Unlock()

	// Another task on this slot may have opened the context while we waited.
	if _, ok := c.active.Load(id); ok {
		return nil, nil
	}

	tc := c.acquire(id)

	h, err := c.slotHandle(ctx, e, desc)
	if err != nil {
		c.release(tc)
		return nil, err
	}
	if err := h.Begin(ctx); err != nil {
		e.handle = nil
		_ = h.Close()
		c.release(tc)
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	tc.setHandle(h)
	c.active.Store(id, tc)
	return tc, nil
}

// slotHandle returns the slot's cached handle, opening and instrumenting it
// on first use. A handle for a descriptor that has since been replaced is
// closed and reopened. e.mu must be held.
func (c *Coordinator) slotHandle(ctx context.Context, e *slotEntry, desc domain.Descriptor) (port.Handle, error) {
	if e.handle != nil {
		if e.handle.Descriptor() == desc {
			return e.handle, nil
		}
		if err := e.handle.Close(); err != nil {
			c.logger.WarnContext(ctx, "closing stale slot handle", slog.String("error", err.Error()))
		}
		e.handle = nil
	}

	h, err := c.opener.Open(ctx, desc, c)
	if err != nil {
		return nil, fmt.Errorf("opening source %q: %w", desc.Alias, err)
	}
	e.handle = h
	return h, nil
}

// Defer commits the caller's context and releases it. It must be called once
// per Watch with the ctx Watch returned. Without an active context it logs an
// error and returns nil. A commit error is returned after cleanup; cleanup
// closes flow handles, rolls back slot handles that failed to commit, resets
// the context and returns it to the pool.
func (c *Coordinator) Defer(ctx context.Context) (err error) {
	deferStart := time.Now()
	id := c.resolver.Resolve(ctx)

	// A slot's next bracket must not begin until this one has committed and
	// cleanup is done with the shared handle.
	if id.IsSlot() {
		e := &c.slots[id.Slot]
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	v, ok := c.active.LoadAndDelete(id)
	if !ok {
		c.logger.ErrorContext(ctx, "defer without matching watch", slog.String("identity", id.String()))
		return nil
	}
	tc := v.(*txContext)
	c.deferring.Store(id, tc)

	h := tc.Handle()
	desc := h.Descriptor()

	ctx, span := c.tracer.Start(ctx, "Coordinator.Defer",
		trace.WithAttributes(
			attribute.String("db.system", desc.Kind.String()),
			attribute.String("txscope.identity", id.String()),
			attribute.String("txscope.context.id", tc.id.String()),
		),
	)
	defer span.End()
	defer func() {
		c.cleanup(ctx, id, tc, h, err != nil)
	}()

	if err = h.Commit(ctx); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.inst.IncrementCommitErrors(ctx)
		c.logger.ErrorContext(ctx, "commit failed",
			slog.String("context.id", tc.id.String()),
			slog.String("identity", id.String()),
			slog.String("source", desc.Alias),
			slog.String("error", err.Error()),
		)
		c.auditor.Record(ctx, port.AuditEntry{
			ContextID: tc.id.String(),
			Identity:  id.String(),
			Source:    desc.Alias,
			Err:       err,
		})
		return err
	}

	costs := tc.snapshot()
	classifier := c.classifier(desc.Kind)
	summary := domain.Summarize(costs, classifier, tc.created, deferStart, time.Now())

	for _, cost := range costs {
		cat := classifier.Classify(cost.Statement)
		c.inst.IncrementStatementCount(ctx, cat)
		c.inst.RecordStatementDuration(ctx, cat, domain.Millis(cost.Elapsed()))
	}
	c.inst.RecordContextDuration(ctx, domain.Millis(summary.Total))
	span.SetAttributes(attribute.Int("txscope.statements", summary.Statements()))

	c.logger.InfoContext(ctx, "context deferred",
		slog.String("context.id", tc.id.String()),
		slog.String("identity", id.String()),
		slog.String("source", desc.Alias),
		slog.Any("cost", summary),
	)
	c.auditor.Record(ctx, port.AuditEntry{
		ContextID: tc.id.String(),
		Identity:  id.String(),
		Source:    desc.Alias,
		Summary:   summary,
	})
	return nil
}

func (c *Coordinator) cleanup(ctx context.Context, id domain.Identity, tc *txContext, h port.Handle, failed bool) {
	ctx = context.WithoutCancel(ctx)
	if id.IsSlot() {
		if failed {
			if err := h.Rollback(ctx); err != nil {
				c.logger.WarnContext(ctx, "rolling back slot handle", slog.String("error", err.Error()))
			}
		}
	} else if err := h.Close(); err != nil {
		c.logger.WarnContext(ctx, "closing handle", slog.String("error", err.Error()))
	}
	c.deferring.Delete(id)
	c.release(tc)
}

// Current returns the handle of the caller's active context. Without one it
// returns a new ad-hoc handle on the default source: statements on it run
// autocommit and are never tracked. Each call outside a bracket gets its own
// handle, so consecutive statements there are not batched.
func (c *Coordinator) Current(ctx context.Context) (port.Handle, error) {
	h, _, err := c.current(ctx)
	return h, err
}

// borrow is Current plus a release func that closes ad-hoc handles and leaves
// tracked ones open.
func (c *Coordinator) borrow(ctx context.Context) (port.Handle, func(), error) {
	h, adHoc, err := c.current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !adHoc {
		return h, func() {}, nil
	}
	return h, func() {
		if err := h.Close(); err != nil {
			c.logger.WarnContext(ctx, "closing ad-hoc handle", slog.String("error", err.Error()))
		}
	}, nil
}

func (c *Coordinator) current(ctx context.Context) (port.Handle, bool, error) {
	if v, ok := c.active.Load(c.resolver.Resolve(ctx)); ok {
		if h := v.(*txContext).Handle(); h != nil {
			return h, false, nil
		}
	}
	desc, err := c.sources.Default()
	if err != nil {
		return nil, false, err
	}
	h, err := c.opener.OpenAdHoc(ctx, desc)
	if err != nil {
		return nil, false, fmt.Errorf("opening source %q: %w", desc.Alias, err)
	}
	return h, true, nil
}

// Close releases the cached slot handles and the opener.
func (c *Coordinator) Close() error {
	var errs []error
	for i := range c.slots {
		e := &c.slots[i]
		e.mu.Lock()
		if e.handle != nil {
			errs = append(errs, e.handle.Close())
			e.handle = nil
		}
		e.mu.Unlock()
	}
	errs = append(errs, c.opener.Close())
	return errors.Join(errs...)
}

// ActiveCount is the number of identities with an active context.
func (c *Coordinator) ActiveCount() int { return countMap(&c.active) }

// DeferringCount is the number of contexts mid-commit.
func (c *Coordinator) DeferringCount() int { return countMap(&c.deferring) }

func countMap(m *sync.Map) int {
	n := 0
	m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Coordinator) classifier(kind domain.DbKind) domain.Classifier {
	if cl, ok := c.classifiers[kind]; ok {
		return cl
	}
	return domain.PrefixClassifier{}
}

func (c *Coordinator) acquire(id domain.Identity) *txContext {
	tc := c.contexts.Get()
	tc.created = time.Now()
	tc.id = uuid.New()
	tc.identity = id
	return tc
}

func (c *Coordinator) release(tc *txContext) {
	tc.reset(c.costs.Put)
	c.contexts.Put(tc)
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, port.AuditEntry) {}
func (noopAuditor) Close() error                            { return nil }
