// Package store provides the shared registry store: the single serialized
// value every surface reads and overwrites, plus notifications delivered to
// the other surfaces whenever it changes.
package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// RemoteChangeHandler receives the new serialized value after another
// surface wrote it.
type RemoteChangeHandler func(data []byte)

// SharedStore is the port the registry uses to reach the shared medium.
// It holds exactly one logical key. Writes are whole-value overwrites and
// fire-and-forget; handlers are never invoked for the writer's own writes.
type SharedStore interface {
	// ReadAll returns the current serialized value, or nil if nothing has
	// been written yet.
	ReadAll() ([]byte, error)

	// Write replaces the serialized value.
	Write(data []byte) error

	// OnRemoteChange registers a handler for writes made by other surfaces
	// and returns a function that removes it. Handlers may run on a
	// goroutine owned by the store.
	OnRemoteChange(handler RemoteChangeHandler) (unsubscribe func())

	// Close releases watchers and file handles.
	Close() error
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}

// contentHash identifies a serialized value, used to recognise our own
// writes when the change notification comes back around.
func contentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
