package port

import (
	"context"
	"database/sql"

	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// Handle is a connection handle a context owns, or an ad-hoc handle handed
// out for a single untracked call.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error

	Descriptor() domain.Descriptor
}

// ExecHooks observe statements executed on an instrumented handle. The ctx
// is the one the statement was issued with.
type ExecHooks interface {
	OnExecuting(ctx context.Context, statement string)
	OnExecuted(ctx context.Context)
}

// Opener constructs handles for admitted descriptors.
type Opener interface {
	// Open returns a dedicated handle able to run a transaction, with hooks
	// firing around every statement and the commit.
	Open(ctx context.Context, d domain.Descriptor, hooks ExecHooks) (Handle, error)
	// OpenAdHoc returns a non-transactional, uninstrumented handle.
	OpenAdHoc(ctx context.Context, d domain.Descriptor) (Handle, error)
	Close() error
}

// SlotSource is the cooperative scheduler collaborator.
type SlotSource interface {
	// Slot reports the slot ctx runs on, if any.
	Slot(ctx context.Context) (int, bool)
	SlotCount() int
}

// NoSlots is a SlotSource for callers that never run under a scheduler.
type NoSlots struct{}

func (NoSlots) Slot(context.Context) (int, bool) { return 0, false }
func (NoSlots) SlotCount() int                   { return 0 }
