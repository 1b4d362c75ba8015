package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/identity"
	"github.com/jmylchreest/winsync/internal/model"
	"github.com/jmylchreest/winsync/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type shapeSource struct {
	mu sync.Mutex
	s  model.Shape
}

func (p *shapeSource) Sample() (model.Shape, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s, nil
}

func (p *shapeSource) Set(s model.Shape) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}

type manualScheduler struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{ch: make(chan time.Time)}
}

func (s *manualScheduler) Ticks() <-chan time.Time {
	return s.ch
}

func (s *manualScheduler) Stop() {
	s.stopped.Store(true)
}

// surface is one Manager plus the state its callbacks recorded.
type surface struct {
	*Manager
	bus    *store.MemoryBus
	shape  *shapeSource
	shapes []model.Shape
	wins   int
}

type harness struct {
	t     *testing.T
	bus   *store.MemoryBus
	clock *fakeClock
	hb    time.Duration
	tick  time.Duration
	mult  int
}

func newHarness(t *testing.T, bus *store.MemoryBus) *harness {
	return &harness{
		t:     t,
		bus:   bus,
		clock: newFakeClock(),
		hb:    time.Second,
		mult:  4,
	}
}

// surface creates a Manager on its own bus handle. Each surface's id is
// allocated on a later millisecond than the previous one, so creation
// order is id order.
func (h *harness) surface(initial model.Shape) *surface {
	h.t.Helper()
	h.clock.Advance(time.Millisecond)

	src := &shapeSource{s: initial}
	m, err := NewManager(Options{
		Store:              h.bus.Store(),
		Tracker:            src,
		Allocator:          identity.NewAllocatorWith(h.clock.Now, nil),
		HeartbeatInterval:  h.hb,
		TickInterval:       h.tick,
		LivenessMultiplier: h.mult,
		ShapeEpsilon:       0.5,
		Now:                h.clock.Now,
	})
	require.NoError(h.t, err)

	s := &surface{Manager: m, bus: h.bus, shape: src}
	m.SetWinChangeCallback(func() { s.wins++ })
	m.SetWinShapeChangeCallback(func(sh model.Shape) { s.shapes = append(s.shapes, sh) })
	return s
}

// joined creates and initializes a surface.
func (h *harness) joined(initial model.Shape, metadata map[string]any) *surface {
	h.t.Helper()
	s := h.surface(initial)
	require.NoError(h.t, s.Init(metadata))
	return s
}

func (s *surface) ids() []string {
	return core.IDs(s.Windows())
}

func (s *surface) resetCounts() {
	s.wins = 0
	s.shapes = nil
}

func stored(t *testing.T, bus *store.MemoryBus) []model.WindowEntry {
	t.Helper()
	entries, err := store.DecodeSnapshot(bus.Value())
	require.NoError(t, err)
	return entries
}

func storedLive(t *testing.T, bus *store.MemoryBus) []string {
	t.Helper()
	return core.IDs(core.Live(stored(t, bus)))
}

func encode(t *testing.T, entries ...model.WindowEntry) []byte {
	t.Helper()
	data, err := store.EncodeSnapshot(entries)
	require.NoError(t, err)
	return data
}

func foreign(id string, lastSeen time.Time, shape model.Shape) model.WindowEntry {
	return model.NewWindowEntry(id, shape, nil, lastSeen)
}
