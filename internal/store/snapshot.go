package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmylchreest/winsync/internal/model"
)

// ErrMalformedSnapshot is returned when the stored value cannot be decoded
// as a registry snapshot.
var ErrMalformedSnapshot = errors.New("malformed registry snapshot")

// EncodeSnapshot serializes a registry as a JSON array of entries. A nil
// registry encodes as an empty array.
func EncodeSnapshot(entries []model.WindowEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.WindowEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a stored registry. Empty input is an empty registry.
// Entries without an id or lastSeen are skipped, as are repeated ids after
// the first. Anything that is not a JSON array of objects yields
// ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) ([]model.WindowEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []model.WindowEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	entries := make([]model.WindowEntry, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, e := range raw {
		if e.Validate() != nil || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	return entries, nil
}
