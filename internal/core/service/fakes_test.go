package service

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
	"github.com/guillermoBallester/txscope/internal/source"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger returns a JSON logger writing into the returned buffer.
func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var defaultSettings = source.Settings{
	{Key: "App/Source/Sqlite/main", Address: "data source=/tmp/main.db"},
	{Key: "App/Source/Sqlite/other", Address: "data source=/tmp/other.db"},
}

// --- fake opener ---

type fakeOpener struct {
	mu        sync.Mutex
	opened    []*fakeHandle
	adHoc     int
	commitErr error
	openErr   error
	closed    bool

	// When set, Commit signals commitStarted and then waits for
	// commitRelease to be closed.
	commitStarted chan struct{}
	commitRelease chan struct{}
}

func (o *fakeOpener) Open(_ context.Context, d domain.Descriptor, hooks port.ExecHooks) (port.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	h := &fakeHandle{opener: o, desc: d, hooks: hooks}
	o.opened = append(o.opened, h)
	return h, nil
}

func (o *fakeOpener) OpenAdHoc(_ context.Context, d domain.Descriptor) (port.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.adHoc++
	return &fakeHandle{opener: o, desc: d, adHoc: true}, nil
}

func (o *fakeOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func (o *fakeOpener) handle(i int) *fakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened[i]
}

func (o *fakeOpener) setCommitErr(err error) {
	o.mu.Lock()
	o.commitErr = err
	o.mu.Unlock()
}

// --- fake handle ---

type fakeHandle struct {
	opener *fakeOpener
	desc   domain.Descriptor
	hooks  port.ExecHooks
	adHoc  bool

	mu         sync.Mutex
	inTx       bool
	statements []string
	begins     int
	commits    int
	rollbacks  int
	closes     int
}

func (h *fakeHandle) ExecContext(ctx context.Context, query string, _ ...any) (sql.Result, error) {
	if h.hooks != nil {
		h.hooks.OnExecuting(ctx, query)
		defer h.hooks.OnExecuted(ctx)
	}
	h.mu.Lock()
	h.statements = append(h.statements, query)
	h.mu.Unlock()
	return driver.RowsAffected(1), nil
}

func (h *fakeHandle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fake handle cannot query")
}

func (h *fakeHandle) Begin(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inTx {
		return errors.New("transaction already open")
	}
	h.inTx = true
	h.begins++
	return nil
}

func (h *fakeHandle) Commit(ctx context.Context) error {
	if h.hooks != nil {
		h.hooks.OnExecuting(ctx, "COMMIT")
		defer h.hooks.OnExecuted(ctx)
	}
	if h.opener.commitStarted != nil {
		h.opener.commitStarted <- struct{}{}
		<-h.opener.commitRelease
	}
	h.opener.mu.Lock()
	err := h.opener.commitErr
	h.opener.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.commits++
	if err != nil {
		return err
	}
	h.inTx = false
	return nil
}

func (h *fakeHandle) Rollback(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rollbacks++
	h.inTx = false
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	h.inTx = false
	return nil
}

func (h *fakeHandle) Descriptor() domain.Descriptor { return h.desc }

func (h *fakeHandle) inTransaction() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inTx
}

type handleCounts struct {
	begins, commits, rollbacks, closes int
}

func (h *fakeHandle) counts() handleCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return handleCounts{h.begins, h.commits, h.rollbacks, h.closes}
}

// --- fake slots ---

type slotKey struct{}

type fakeSlots struct{ n int }

func (s fakeSlots) Slot(ctx context.Context) (int, bool) {
	slot, ok := ctx.Value(slotKey{}).(int)
	return slot, ok
}

func (s fakeSlots) SlotCount() int { return s.n }

func onSlot(slot int) context.Context {
	return context.WithValue(context.Background(), slotKey{}, slot)
}

// --- fake auditor ---

type fakeAuditor struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *fakeAuditor) Record(_ context.Context, e port.AuditEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *fakeAuditor) Close() error { return nil }

func (a *fakeAuditor) all() []port.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]port.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// --- fake instrumentation ---

type fakeInstrumentation struct {
	port.NoopInstrumentation
	mu           sync.Mutex
	counts       map[domain.Category]int
	commitErrors int
}

func (f *fakeInstrumentation) IncrementStatementCount(_ context.Context, cat domain.Category) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[domain.Category]int)
	}
	f.counts[cat]++
}

func (f *fakeInstrumentation) IncrementCommitErrors(context.Context) {
	f.mu.Lock()
	f.commitErrors++
	f.mu.Unlock()
}

func newTestCoordinator(t *testing.T, opener *fakeOpener, slots port.SlotSource, opts ...Option) *Coordinator {
	t.Helper()
	c := NewCoordinator(opener, slots, testLogger(), opts...)
	require.NoError(t, c.Initialize(defaultSettings))
	return c
}
