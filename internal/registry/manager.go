// Package registry implements the window registry: each surface publishes
// its own entry to a shared store, merges what the other surfaces publish,
// and prunes entries whose owners stopped sending heartbeats.
package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/identity"
	"github.com/jmylchreest/winsync/internal/model"
	"github.com/jmylchreest/winsync/internal/shape"
	"github.com/jmylchreest/winsync/internal/store"
)

// Defaults used when Options leaves a field unset. ShapeEpsilon is unset
// only when negative, zero being exact comparison.
const (
	DefaultHeartbeatInterval  = time.Second
	DefaultLivenessMultiplier = 4
	DefaultShapeEpsilon       = 0.5
	DefaultInboxSize          = 16
)

// Errors
var (
	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrNotInitialized     = errors.New("registry not initialized")
	ErrNoStore            = errors.New("registry needs a shared store")
)

// Options configures a Manager.
type Options struct {
	Store     store.SharedStore
	Tracker   shape.Tracker      // Defaults to a zero static shape
	Allocator *identity.Allocator // Defaults to a fresh allocator

	HeartbeatInterval  time.Duration
	LivenessMultiplier int
	ShapeEpsilon       float64

	// TickInterval is the period between Update calls. A heartbeat is sent
	// on the last tick that still falls within HeartbeatInterval of the
	// previous publication. Zero means unknown; Run fills it in from a
	// scheduler that reports its period.
	TickInterval time.Duration

	// InboxSize bounds the number of remote snapshots waiting to be merged.
	// When full the oldest is dropped, every snapshot being a full state.
	InboxSize int

	Now    func() time.Time
	Logger *slog.Logger
}

// Manager keeps the local view of the registry for one surface.
//
// Init, Update, Depart and Run must be called from one goroutine, the
// surface's loop. Windows is safe from any goroutine. Callbacks run on the
// loop goroutine after internal locks are released.
type Manager struct {
	store     store.SharedStore
	tracker   shape.Tracker
	allocator *identity.Allocator
	heartbeat time.Duration
	timeout   time.Duration
	epsilon   float64
	now       func() time.Time
	logger    *slog.Logger

	inbox chan []byte

	// mu serializes mutation of the fields below.
	mu            sync.Mutex
	id            string
	self          model.WindowEntry
	lastPublished time.Time
	tick          time.Duration
	initialized   bool
	departed      bool
	unsubscribe   func()

	viewMu  sync.RWMutex
	entries []model.WindowEntry

	cbMu          sync.Mutex
	onShapeChange func(model.Shape)
	onWinChange   func()
}

// NewManager creates a Manager. Nothing is published until Init.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Tracker == nil {
		opts.Tracker = shape.StaticTracker{}
	}
	if opts.Allocator == nil {
		opts.Allocator = identity.NewAllocator()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.LivenessMultiplier <= 0 {
		opts.LivenessMultiplier = DefaultLivenessMultiplier
	}
	if opts.ShapeEpsilon < 0 {
		opts.ShapeEpsilon = DefaultShapeEpsilon
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		store:     opts.Store,
		tracker:   opts.Tracker,
		allocator: opts.Allocator,
		heartbeat: opts.HeartbeatInterval,
		tick:      max(opts.TickInterval, 0),
		timeout:   time.Duration(opts.LivenessMultiplier) * opts.HeartbeatInterval,
		epsilon:   opts.ShapeEpsilon,
		now:       opts.Now,
		logger:    opts.Logger,
		inbox:     make(chan []byte, opts.InboxSize),
	}, nil
}

// ID returns the surface id. It is empty before Init.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// HeartbeatInterval returns the maximum time between two publications.
func (m *Manager) HeartbeatInterval() time.Duration {
	return m.heartbeat
}

// LivenessTimeout returns how long a foreign entry survives without a
// heartbeat.
func (m *Manager) LivenessTimeout() time.Duration {
	return m.timeout
}

// Self returns a copy of the local entry.
func (m *Manager) Self() model.WindowEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self.Clone()
}

// Windows returns a copy of the live registry in id order. Departure
// tombstones are left out.
func (m *Manager) Windows() []model.WindowEntry {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return model.CloneEntries(core.Live(m.entries))
}

// SetWinShapeChangeCallback registers fn to be called with the new local
// shape whenever it changes. It replaces any earlier registration.
func (m *Manager) SetWinShapeChangeCallback(fn func(model.Shape)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onShapeChange = fn
}

// SetWinChangeCallback registers fn to be called whenever the ordered id
// sequence of the registry changes. It replaces any earlier registration.
func (m *Manager) SetWinChangeCallback(fn func()) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onWinChange = fn
}

// Init creates the local entry, publishes it and starts listening for
// writes by other surfaces. It runs once per Manager.
func (m *Manager) Init(metadata map[string]any) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}

	now := m.now()
	m.id = m.allocator.ID()
	m.self = model.NewWindowEntry(m.id, m.sample(model.Shape{}), metadata, now)
	m.initialized = true
	m.unsubscribe = m.store.OnRemoteChange(m.enqueue)

	before := m.view()
	m.publish(now)
	changed := membershipChanged(before, m.view())
	m.mu.Unlock()

	m.logger.Debug("window registered", "id", m.id, "shape", m.self.Shape.String())

	var ev events
	ev.windows = changed
	m.fire(ev)
	return nil
}

// Update merges pending remote snapshots, samples the local shape and
// publishes when it changed or when a heartbeat is due, then drops foreign
// entries that outlived the liveness timeout.
func (m *Manager) Update() {
	m.mu.Lock()
	if !m.initialized || m.departed {
		m.mu.Unlock()
		return
	}

	before := m.view()
	m.drain()

	var ev events
	now := m.now()
	s := m.sample(m.self.Shape)
	switch {
	case core.ShapeChanged(m.self.Shape, s, m.epsilon):
		m.self.Shape = s
		m.self.Advance(now)
		m.publish(now)
		ev.shape = &s
	case m.heartbeatDue(now):
		m.self.Touch(now)
		m.publish(now)
	}
	m.sweep(now)

	ev.windows = membershipChanged(before, m.view())
	m.mu.Unlock()

	m.fire(ev)
}

// Depart replaces the local entry in the shared store with a departure
// tombstone and stops listening. Peers merging the tombstone drop the
// window at once, and since it outranks their copy their own heartbeats
// cannot write the live entry back. The tombstone is pruned like any
// entry once it times out. Update is a no-op afterwards.
func (m *Manager) Depart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.departed {
		return
	}
	m.departed = true
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	now := m.now()
	m.self.Departed = true
	m.self.Advance(now)
	remaining := core.MergeEntries(m.view(), m.readRemote(), m.id)
	remaining = core.PutEntry(remaining, m.self)
	remaining, _ = core.PruneStale(remaining, now, m.timeout, m.id)
	m.setView(remaining)
	m.write(remaining)

	m.logger.Debug("window departed", "id", m.id)
}

// Close departs and releases the store.
func (m *Manager) Close() error {
	m.Depart()
	return m.store.Close()
}

// onExternalChange merges a snapshot written by another surface. It never
// publishes, except to overwrite a value that could not be decoded.
func (m *Manager) onExternalChange(raw []byte) {
	m.mu.Lock()
	if !m.initialized || m.departed {
		m.mu.Unlock()
		return
	}
	before := m.view()
	m.apply(raw)
	changed := membershipChanged(before, m.view())
	m.mu.Unlock()

	m.fire(events{windows: changed})
}

// enqueue runs on the store's goroutine and hands the snapshot to the loop.
func (m *Manager) enqueue(raw []byte) {
	for {
		select {
		case m.inbox <- raw:
			return
		default:
		}
		// Full: drop the oldest, a newer full snapshot supersedes it.
		select {
		case <-m.inbox:
		default:
		}
	}
}

// drain applies every queued snapshot. Caller holds mu.
func (m *Manager) drain() {
	for {
		select {
		case raw := <-m.inbox:
			m.apply(raw)
		default:
			return
		}
	}
}

// apply merges raw into the view. Caller holds mu.
func (m *Manager) apply(raw []byte) {
	now := m.now()
	remote, err := store.DecodeSnapshot(raw)
	if err != nil {
		m.logger.Warn("discarding unreadable registry snapshot, republishing", "error", err)
		m.self.Touch(now)
		m.publish(now)
		return
	}

	merged := core.MergeEntries(m.view(), remote, m.id)
	merged, removed := core.PruneStale(merged, now, m.timeout, m.id)
	if len(removed) > 0 {
		m.logger.Debug("ignoring stale windows", "ids", removed)
	}
	m.setView(merged)
}

// publish writes the merged registry with the local entry. Caller holds mu.
func (m *Manager) publish(now time.Time) {
	merged := core.MergeEntries(m.view(), m.readRemote(), m.id)
	merged = core.PutEntry(merged, m.self)
	merged, removed := core.PruneStale(merged, now, m.timeout, m.id)
	if len(removed) > 0 {
		m.logger.Debug("pruned stale windows", "ids", removed)
	}

	m.setView(merged)
	m.write(merged)
	m.lastPublished = now
}

// sweep drops foreign entries that missed their heartbeats. Caller holds mu.
func (m *Manager) sweep(now time.Time) {
	kept, removed := core.PruneStale(m.view(), now, m.timeout, m.id)
	if len(removed) == 0 {
		return
	}
	m.logger.Debug("pruned stale windows", "ids", removed)
	m.setView(kept)
}

// heartbeatDue reports whether the local entry must be refreshed on this
// tick, so that waiting for the next one would not let the gap since the
// last publication exceed the heartbeat interval. Caller holds mu.
func (m *Manager) heartbeatDue(now time.Time) bool {
	return now.Sub(m.lastPublished)+m.tick >= m.heartbeat
}

// membershipChanged reports whether the live id sequence differs.
func membershipChanged(before, after []model.WindowEntry) bool {
	return !core.SameIDs(core.Live(before), core.Live(after))
}

// readRemote returns the stored registry. Read and decode failures yield
// an empty registry; the following write replaces the bad value.
func (m *Manager) readRemote() []model.WindowEntry {
	raw, err := m.store.ReadAll()
	if err != nil {
		m.logger.Warn("failed to read registry", "error", err)
		return nil
	}
	entries, err := store.DecodeSnapshot(raw)
	if err != nil {
		m.logger.Warn("stored registry is unreadable, overwriting", "error", err)
		return nil
	}
	return entries
}

func (m *Manager) write(entries []model.WindowEntry) {
	data, err := store.EncodeSnapshot(entries)
	if err != nil {
		m.logger.Error("failed to encode registry", "error", err)
		return
	}
	// Heartbeats retry failed writes.
	if err := m.store.Write(data); err != nil {
		m.logger.Warn("failed to write registry", "error", err)
	}
}

func (m *Manager) sample(last model.Shape) model.Shape {
	s, err := m.tracker.Sample()
	if err != nil {
		m.logger.Debug("shape sample failed", "error", err)
		return last
	}
	return s
}

// view returns the current registry without copying. Caller holds mu.
func (m *Manager) view() []model.WindowEntry {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return m.entries
}

func (m *Manager) setView(entries []model.WindowEntry) {
	m.viewMu.Lock()
	defer m.viewMu.Unlock()
	m.entries = entries
}

type events struct {
	windows bool
	shape   *model.Shape
}

func (m *Manager) fire(ev events) {
	m.cbMu.Lock()
	onShape, onWin := m.onShapeChange, m.onWinChange
	m.cbMu.Unlock()

	if ev.shape != nil && onShape != nil {
		onShape(*ev.shape)
	}
	if ev.windows && onWin != nil {
		onWin()
	}
}
