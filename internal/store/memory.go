package store

import (
	"slices"
	"sync"
)

// MemoryBus is an in-process stand-in for the shared medium. Each surface
// gets its own MemoryStore handle from the bus. In immediate mode a write is
// delivered to the other handles before Write returns; in queued mode
// deliveries wait for Flush, which lets tests drop, reorder or delay them.
type MemoryBus struct {
	mu      sync.Mutex
	value   []byte
	stores  []*MemoryStore
	queued  bool
	pending []delivery
	writes  int
}

type delivery struct {
	to   *MemoryStore
	data []byte
}

// NewMemoryBus creates a bus that delivers notifications immediately.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// NewQueuedMemoryBus creates a bus that holds notifications until Flush.
func NewQueuedMemoryBus() *MemoryBus {
	return &MemoryBus{queued: true}
}

// Store attaches a new surface handle to the bus.
func (b *MemoryBus) Store() *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &MemoryStore{bus: b, handlers: make(map[int]RemoteChangeHandler)}
	b.stores = append(b.stores, s)
	return s
}

// Value returns a copy of the current value.
func (b *MemoryBus) Value() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.value)
}

// Writes returns how many writes the bus has accepted.
func (b *MemoryBus) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Inject overwrites the value as if written by a foreign surface and
// notifies every handle.
func (b *MemoryBus) Inject(data []byte) {
	b.write(nil, data)
}

// Pending returns the number of queued deliveries.
func (b *MemoryBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush delivers every queued notification in order and returns how many
// were delivered.
func (b *MemoryBus) Flush() int {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, d := range pending {
		d.to.deliver(d.data)
	}
	return len(pending)
}

// DropPending discards queued notifications, as when a surface is
// suspended while others write.
func (b *MemoryBus) DropPending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pending)
	b.pending = nil
	return n
}

// ReversePending reverses the delivery order of queued notifications.
func (b *MemoryBus) ReversePending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	slices.Reverse(b.pending)
}

func (b *MemoryBus) write(from *MemoryStore, data []byte) {
	b.mu.Lock()
	b.value = slices.Clone(data)
	b.writes++

	var immediate []delivery
	for _, s := range b.stores {
		if s == from {
			continue
		}
		d := delivery{to: s, data: slices.Clone(data)}
		if b.queued {
			b.pending = append(b.pending, d)
		} else {
			immediate = append(immediate, d)
		}
	}
	b.mu.Unlock()

	for _, d := range immediate {
		d.to.deliver(d.data)
	}
}

func (b *MemoryBus) detach(s *MemoryStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stores = slices.DeleteFunc(b.stores, func(x *MemoryStore) bool { return x == s })
}

// MemoryStore is one surface's handle onto a MemoryBus.
type MemoryStore struct {
	bus *MemoryBus

	mu       sync.Mutex
	handlers map[int]RemoteChangeHandler
	nextID   int
	closed   bool
}

var _ SharedStore = (*MemoryStore)(nil)

// ReadAll returns the bus value.
func (s *MemoryStore) ReadAll() ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	return s.bus.Value(), nil
}

// Write replaces the bus value and notifies the other handles.
func (s *MemoryStore) Write(data []byte) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	s.bus.write(s, data)
	return nil
}

// OnRemoteChange registers a handler for writes by other handles.
func (s *MemoryStore) OnRemoteChange(handler RemoteChangeHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// Close detaches the handle from the bus.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = nil
	s.mu.Unlock()

	s.bus.detach(s)
	return nil
}

func (s *MemoryStore) deliver(data []byte) {
	s.mu.Lock()
	handlers := make([]RemoteChangeHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
