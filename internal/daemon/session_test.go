package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/model"
	"github.com/jmylchreest/winsync/internal/shape"
	"github.com/jmylchreest/winsync/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSession(t *testing.T, bus *store.MemoryBus, log *sentLog, sh model.Shape) *Session {
	t.Helper()
	return newClockedSession(t, bus, log, sh, time.Now)
}

func newClockedSession(t *testing.T, bus *store.MemoryBus, log *sentLog, sh model.Shape, now func() time.Time) *Session {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Notify.Desktop = true
	cfg.Registry.TickInterval = config.Duration(5 * time.Millisecond)

	opts := Options{
		Config:   cfg,
		Metadata: map[string]any{"foo": "bar"},
		Store:    bus.Store(),
		Tracker:  shape.StaticTracker{Shape: sh},
		Now:      now,
	}
	if log != nil {
		opts.Notify = log.handle
		opts.Dismiss = log.dismiss
	}

	s, err := NewSession(opts)
	require.NoError(t, err)
	return s
}

func storedIDs(t *testing.T, bus *store.MemoryBus) []string {
	t.Helper()
	entries, err := store.DecodeSnapshot(bus.Value())
	require.NoError(t, err)
	return core.IDs(core.Live(entries))
}

func TestSession_StartPublishesAndSignals(t *testing.T) {
	bus := store.NewMemoryBus()
	s := newTestSession(t, bus, nil, model.Shape{W: 100, H: 50})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	id := s.Manager().ID()
	assert.Equal(t, []string{id}, storedIDs(t, bus))
	assert.Equal(t, "bar", s.Manager().Self().Metadata["foo"])

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change signal after joining")
	}
}

func TestSession_NotifiesMembershipChanges(t *testing.T) {
	bus := store.NewMemoryBus()
	log := &sentLog{}
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}

	a := newClockedSession(t, bus, log, model.Shape{W: 100, H: 50}, clock.Now)
	require.NoError(t, a.Start())
	// Joining alone announces nothing
	assert.Empty(t, log.sent)

	clock.Advance(time.Millisecond)
	b := newClockedSession(t, bus, nil, model.Shape{X: 200, W: 100, H: 50}, clock.Now)
	require.NoError(t, b.Start())

	a.Manager().Update()
	require.Len(t, log.sent, 1)
	assert.Equal(t, "Window joined", log.sent[0].Summary)
	assert.Equal(t, b.Manager().ID(), log.sent[0].Body)

	// Peers announce a departure as soon as they merge it.
	require.NoError(t, b.Close())
	a.Manager().Update()
	require.Len(t, log.sent, 2)
	assert.Equal(t, "Window left", log.sent[1].Summary)
	assert.Equal(t, b.Manager().ID(), log.sent[1].Body)

	// Expiry of the departure record is not a second departure.
	clock.Advance(a.Manager().LivenessTimeout() + time.Millisecond)
	a.Manager().Update()
	assert.Len(t, log.sent, 2)
}

func TestSession_CloseWithdrawsNotices(t *testing.T) {
	bus := store.NewMemoryBus()
	log := &sentLog{}
	a := newTestSession(t, bus, log, model.Shape{W: 100, H: 50})
	require.NoError(t, a.Start())

	b := newTestSession(t, bus, nil, model.Shape{X: 200, W: 100, H: 50})
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Close() })

	a.Manager().Update()
	require.Len(t, log.sent, 1)

	require.NoError(t, a.Close())
	assert.Equal(t, []uint32{1}, log.closed)
}

func TestSession_NotificationsFollowConfig(t *testing.T) {
	bus := store.NewMemoryBus()
	log := &sentLog{}
	s := newTestSession(t, bus, log, model.Shape{})
	assert.True(t, s.Notifier().Enabled())

	cfg := config.DefaultConfig()
	cfg.Notify.Desktop = false
	s.ApplyConfig(cfg)
	assert.False(t, s.Notifier().Enabled())

	cfg.Notify.Desktop = true
	s.ApplyConfig(cfg)
	assert.True(t, s.Notifier().Enabled())

	// Without a handler notifications stay off
	quiet := newTestSession(t, bus, nil, model.Shape{})
	quiet.ApplyConfig(cfg)
	assert.False(t, quiet.Notifier().Enabled())
}

func TestSession_RunEndsWhenFrontEndReturns(t *testing.T) {
	bus := store.NewMemoryBus()
	s := newTestSession(t, bus, nil, model.Shape{W: 10, H: 10})

	var during []byte
	err := s.Run(context.Background(), func(ctx context.Context) error {
		during = bus.Value()
		return nil
	})
	require.NoError(t, err)

	entries, err := store.DecodeSnapshot(during)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "surface should be published while the front end runs")
	assert.Empty(t, storedIDs(t, bus), "surface should depart when the front end exits")
}

func TestSession_RunReportsFrontEndError(t *testing.T) {
	bus := store.NewMemoryBus()
	s := newTestSession(t, bus, nil, model.Shape{})

	boom := errors.New("terminal went away")
	err := s.Run(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, storedIDs(t, bus))
}

func TestSession_RunUntilCancelled(t *testing.T) {
	bus := store.NewMemoryBus()
	a := newTestSession(t, bus, nil, model.Shape{W: 10, H: 10})
	b := newTestSession(t, bus, nil, model.Shape{X: 10, W: 10, H: 10})
	require.NoError(t, b.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(a.Manager().Windows()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{b.Manager().ID()}, storedIDs(t, bus))
}
