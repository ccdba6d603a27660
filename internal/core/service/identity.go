package service

import (
	"context"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

type flowKey struct{}

func withFlow(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, flowKey{}, id)
}

// Resolver maps a ctx to the identity its context is registered under.
type Resolver struct {
	slots port.SlotSource
	count int
}

// NewResolver captures the scheduler's slot count; slots reported outside
// [0, count) are treated as unmanaged.
func NewResolver(slots port.SlotSource) Resolver {
	if slots == nil {
		slots = port.NoSlots{}
	}
	return Resolver{slots: slots, count: slots.SlotCount()}
}

// Resolve returns the slot identity when ctx runs on a managed scheduler
// slot, the flow identity stamped by Watch otherwise, or the unbound
// identity.
func (r Resolver) Resolve(ctx context.Context) domain.Identity {
	if ctx == nil {
		return domain.Identity{}
	}
	if slot, ok := r.slots.Slot(ctx); ok && slot >= 0 && slot < r.count {
		return domain.SlotIdentity(slot)
	}
	if id, ok := ctx.Value(flowKey{}).(uint64); ok {
		return domain.FlowIdentity(id)
	}
	return domain.Identity{}
}

// SlotCount is the number of managed slots.
func (r Resolver) SlotCount() int { return r.count }
