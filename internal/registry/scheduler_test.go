package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/store"
)

func TestRun_RequiresInit(t *testing.T) {
	h := newHarness(t, store.NewMemoryBus())
	a := h.surface(shapeA)

	err := a.Run(context.Background(), newManualScheduler())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRun_MergesTicksAndDepartsOnCancel(t *testing.T) {
	h := newHarness(t, store.NewMemoryBus())
	a := h.joined(shapeA, nil)

	sched := newManualScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, sched)
	}()

	// Merged as soon as it arrives, no tick needed.
	b := h.joined(shapeB, nil)
	require.Eventually(t, func() bool {
		return len(a.Windows()) == 2
	}, time.Second, 5*time.Millisecond)

	h.clock.Advance(h.hb)
	writes := h.bus.Writes()
	sched.ch <- h.clock.Now()
	require.Eventually(t, func() bool {
		return h.bus.Writes() > writes
	}, time.Second, 5*time.Millisecond, "tick should publish a heartbeat")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.True(t, sched.stopped.Load())
	assert.Equal(t, []string{b.ID()}, storedLive(t, h.bus))
	gone := core.LookupByID(stored(t, h.bus), a.ID())
	require.NotNil(t, gone)
	assert.True(t, gone.Departed)
}

func TestRun_ReportsDeadline(t *testing.T) {
	h := newHarness(t, store.NewMemoryBus())
	a := h.joined(shapeA, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := a.Run(ctx, newManualScheduler())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, storedLive(t, h.bus))
}

func TestRun_TakesTickIntervalFromScheduler(t *testing.T) {
	h := newHarness(t, store.NewMemoryBus())
	a := h.joined(shapeA, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx, NewTickerScheduler(300*time.Millisecond)))

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, 300*time.Millisecond, a.tick)
}

func TestRun_KeepsConfiguredTickInterval(t *testing.T) {
	h := newHarness(t, store.NewMemoryBus())
	h.tick = 100 * time.Millisecond
	a := h.joined(shapeA, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx, NewTickerScheduler(300*time.Millisecond)))

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, 100*time.Millisecond, a.tick)
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(5 * time.Millisecond)
	defer s.Stop()

	assert.Equal(t, 5*time.Millisecond, s.Period())
	select {
	case <-s.Ticks():
	case <-time.After(time.Second):
		t.Fatal("no tick")
	}
}
