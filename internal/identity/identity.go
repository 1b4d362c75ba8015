// Package identity allocates the stable id of a surface.
package identity

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Allocator hands out one id per surface lifetime. The first call to ID
// generates it, every later call returns the same value.
type Allocator struct {
	once    sync.Once
	id      string
	now     func() time.Time
	entropy io.Reader
}

// NewAllocator creates an Allocator using wall-clock time and crypto/rand.
func NewAllocator() *Allocator {
	return &Allocator{now: time.Now, entropy: rand.Reader}
}

// NewAllocatorWith creates an Allocator with an injected clock and entropy
// source. A nil argument falls back to the default.
func NewAllocatorWith(now func() time.Time, entropy io.Reader) *Allocator {
	a := NewAllocator()
	if now != nil {
		a.now = now
	}
	if entropy != nil {
		a.entropy = entropy
	}
	return a
}

// ID returns the surface id, generating it on first use.
func (a *Allocator) ID() string {
	a.once.Do(func() {
		a.id = New(a.now(), a.entropy)
	})
	return a.id
}

// New generates a ULID for the given time: a 48-bit millisecond timestamp
// followed by 80 random bits. Lexical order of the result follows creation
// time, so ids created in the same millisecond differ only by entropy.
func New(t time.Time, entropy io.Reader) string {
	if entropy == nil {
		entropy = rand.Reader
	}
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// crypto/rand does not fail on supported platforms; keep the
		// allocator total anyway.
		id = ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy())
	}
	return id.String()
}

// Time extracts the creation time embedded in an id. ok is false for ids
// that are not ULIDs.
func Time(id string) (time.Time, bool) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}
