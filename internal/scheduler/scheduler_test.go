package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RequiresSlots(t *testing.T) {
	t.Parallel()
	_, err := New(0, testLogger())
	assert.ErrorIs(t, err, ErrNoSlots)
}

func TestRun_AssignsSlotsRoundRobin(t *testing.T) {
	t.Parallel()
	s, err := New(3, testLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	got := make(map[int]int)
	tasks := make([]Task, 9)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			slot, ok := s.Slot(ctx)
			require.True(t, ok)
			mu.Lock()
			got[i] = slot
			mu.Unlock()
			return nil
		}
	}

	require.NoError(t, s.Run(context.Background(), tasks))
	require.Len(t, got, 9)
	for i, slot := range got {
		assert.Equal(t, i%3, slot)
	}
}

func TestRun_OneTaskPerSlotAtATime(t *testing.T) {
	t.Parallel()
	s, err := New(2, testLogger())
	require.NoError(t, err)

	var running [2]atomic.Int32
	var overlap atomic.Bool
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			slot, _ := SlotFrom(ctx)
			if running[slot].Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			running[slot].Add(-1)
			return nil
		}
	}

	require.NoError(t, s.Run(context.Background(), tasks))
	assert.False(t, overlap.Load(), "tasks on one slot must not overlap without yielding")
}

func TestYield_InterleavesTasksOnOneSlot(t *testing.T) {
	t.Parallel()
	s, err := New(1, testLogger())
	require.NoError(t, err)

	var done atomic.Bool
	waiter := func(ctx context.Context) error {
		deadline := time.Now().Add(5 * time.Second)
		for !done.Load() {
			if time.Now().After(deadline) {
				return errors.New("other task never ran")
			}
			if err := Yield(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	signaller := func(context.Context) error {
		done.Store(true)
		return nil
	}

	require.NoError(t, s.Run(context.Background(), []Task{waiter, signaller}))
}

func TestRun_PropagatesFirstError(t *testing.T) {
	t.Parallel()
	s, err := New(2, testLogger())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Run(context.Background(), []Task{
		func(context.Context) error { return boom },
		func(context.Context) error { return nil },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "slot 0")
}

func TestWithSlot(t *testing.T) {
	t.Parallel()
	slot, ok := SlotFrom(context.Background())
	assert.False(t, ok)
	assert.Equal(t, Unmanaged, slot)

	ctx := WithSlot(context.Background(), 7)
	slot, ok = SlotFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, 7, slot)

	// Outside Run there is no turn to hand over.
	assert.NoError(t, Yield(ctx))
}
