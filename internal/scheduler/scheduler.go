// Package scheduler runs many logical tasks over a bounded set of worker
// slots. Tasks on one slot take turns: a task holds its slot until it returns
// or calls Yield.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var ErrNoSlots = errors.New("scheduler needs at least one slot")

// Unmanaged is the slot reported for contexts no scheduler runs.
const Unmanaged = -1

type slotKey struct{}

type slotState struct {
	slot  int
	token chan struct{}
}

// turn is one task's claim on its slot.
type turn struct {
	*slotState
	held bool
}

func (t *turn) acquire(ctx context.Context) error {
	if t.token == nil {
		return nil
	}
	select {
	case t.token <- struct{}{}:
		t.held = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *turn) release() {
	if t.held {
		t.held = false
		<-t.token
	}
}

// WithSlot marks ctx as running on slot. External schedulers use it to
// bridge their own slot ids.
func WithSlot(ctx context.Context, slot int) context.Context {
	return context.WithValue(ctx, slotKey{}, &turn{slotState: &slotState{slot: slot}})
}

// SlotFrom reports the slot ctx runs on, or Unmanaged.
func SlotFrom(ctx context.Context) (int, bool) {
	t, ok := ctx.Value(slotKey{}).(*turn)
	if !ok {
		return Unmanaged, false
	}
	return t.slot, true
}

// Task is one logical unit of work.
type Task func(ctx context.Context) error

// Scheduler is a cooperative scheduler over a fixed number of slots.
type Scheduler struct {
	slots  int
	logger *slog.Logger
}

func New(slots int, logger *slog.Logger) (*Scheduler, error) {
	if slots <= 0 {
		return nil, ErrNoSlots
	}
	return &Scheduler{slots: slots, logger: logger}, nil
}

func (s *Scheduler) SlotCount() int { return s.slots }

func (s *Scheduler) Slot(ctx context.Context) (int, bool) { return SlotFrom(ctx) }

// Run executes every task, task i on slot i%SlotCount(). It returns the first
// task error; the remaining tasks see a cancelled ctx.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) error {
	g, ctx := errgroup.WithContext(ctx)

	states := make([]*slotState, s.slots)
	for i := range states {
		states[i] = &slotState{slot: i, token: make(chan struct{}, 1)}
	}

	for i, task := range tasks {
		t := &turn{slotState: states[i%s.slots]}
		g.Go(func() error {
			if err := t.acquire(ctx); err != nil {
				return err
			}
			defer t.release()

			if err := task(context.WithValue(ctx, slotKey{}, t)); err != nil {
				return fmt.Errorf("task %d on slot %d: %w", i, t.slot, err)
			}
			return nil
		})
	}

	err := g.Wait()
	s.logger.Debug("scheduler run finished",
		slog.Int("tasks", len(tasks)),
		slog.Int("slots", s.slots),
		slog.Bool("error", err != nil),
	)
	return err
}

// Yield hands the caller's slot to another task waiting on it and blocks
// until the slot is free again. Outside a scheduler task it only yields the
// processor.
func Yield(ctx context.Context) error {
	t, ok := ctx.Value(slotKey{}).(*turn)
	if !ok || t.token == nil {
		runtime.Gosched()
		return nil
	}
	t.release()
	runtime.Gosched()
	return t.acquire(ctx)
}
