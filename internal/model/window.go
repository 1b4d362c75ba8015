// Package model defines the core data structures for winsync.
package model

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"time"
)

// Shape is the screen-space position and size of a surface.
type Shape struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Center returns the midpoint of the shape.
func (s Shape) Center() (float64, float64) {
	return s.X + s.W*0.5, s.Y + s.H*0.5
}

// Differs reports whether any component differs from o by more than eps.
func (s Shape) Differs(o Shape, eps float64) bool {
	return math.Abs(s.X-o.X) > eps ||
		math.Abs(s.Y-o.Y) > eps ||
		math.Abs(s.W-o.W) > eps ||
		math.Abs(s.H-o.H) > eps
}

// String formats the shape as WxH+X+Y, the X11 geometry notation.
func (s Shape) String() string {
	return fmt.Sprintf("%gx%g%+g%+g", s.W, s.H, s.X, s.Y)
}

// WindowEntry is one surface's record within the registry.
// Only the owning surface ever writes Shape, Metadata, LastSeen and
// Departed.
type WindowEntry struct {
	ID       string         `json:"id" yaml:"id"`
	Shape    Shape          `json:"shape" yaml:"shape"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
	LastSeen int64          `json:"lastSeen" yaml:"last_seen"` // Unix milliseconds

	// Departed marks a tombstone left by a surface that has shut down.
	// It outranks every earlier copy of the entry and expires like any
	// other entry once it stops being refreshed.
	Departed bool `json:"departed,omitempty" yaml:"departed,omitempty"`
}

// Validation errors.
var (
	ErrEmptyWindowID   = errors.New("window id cannot be empty")
	ErrInvalidLastSeen = errors.New("lastSeen must be greater than 0")
)

// NewWindowEntry creates an entry stamped with the given time.
func NewWindowEntry(id string, shape Shape, metadata map[string]any, now time.Time) WindowEntry {
	return WindowEntry{
		ID:       id,
		Shape:    shape,
		Metadata: maps.Clone(metadata),
		LastSeen: now.UnixMilli(),
	}
}

// Validate checks that the entry carries the fields every surface relies on.
func (e *WindowEntry) Validate() error {
	if e.ID == "" {
		return ErrEmptyWindowID
	}
	if e.LastSeen <= 0 {
		return ErrInvalidLastSeen
	}
	return nil
}

// Touch refreshes LastSeen. It never moves the timestamp backwards.
func (e *WindowEntry) Touch(now time.Time) {
	if ms := now.UnixMilli(); ms > e.LastSeen {
		e.LastSeen = ms
	}
}

// Advance moves LastSeen strictly forward: to now, or one millisecond past
// the current value when now is not later. Used when content changes, so
// peers holding the previous copy treat the new one as newer.
func (e *WindowEntry) Advance(now time.Time) {
	ms := now.UnixMilli()
	if ms <= e.LastSeen {
		ms = e.LastSeen + 1
	}
	e.LastSeen = ms
}

// LastSeenTime returns LastSeen as a time.Time.
func (e *WindowEntry) LastSeenTime() time.Time {
	return time.UnixMilli(e.LastSeen)
}

// Age returns how long ago the entry was last refreshed.
func (e *WindowEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastSeenTime())
}

// IsStale reports whether the entry has not been refreshed within timeout.
func (e *WindowEntry) IsStale(now time.Time, timeout time.Duration) bool {
	return e.Age(now) > timeout
}

// Newer reports whether e supersedes o as a copy of the same entry. A
// tombstone wins a tie on LastSeen.
func (e *WindowEntry) Newer(o WindowEntry) bool {
	if e.LastSeen != o.LastSeen {
		return e.LastSeen > o.LastSeen
	}
	return e.Departed && !o.Departed
}

// Clone creates a copy of the entry with its own metadata map.
func (e *WindowEntry) Clone() WindowEntry {
	clone := *e
	clone.Metadata = maps.Clone(e.Metadata)
	return clone
}

// CloneEntries copies a slice of entries.
func CloneEntries(entries []WindowEntry) []WindowEntry {
	if entries == nil {
		return nil
	}
	out := make([]WindowEntry, len(entries))
	for i := range entries {
		out[i] = entries[i].Clone()
	}
	return out
}
