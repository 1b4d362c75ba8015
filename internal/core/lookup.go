package core

import (
	"strings"

	"github.com/jmylchreest/winsync/internal/model"
)

// LookupByID finds an entry by exact id.
// Returns nil if not found.
func LookupByID(entries []model.WindowEntry, id string) *model.WindowEntry {
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return nil
}

// LookupByIndex finds an entry by its registry index (1-based).
// Returns nil if index is out of bounds.
func LookupByIndex(entries []model.WindowEntry, index int) *model.WindowEntry {
	idx := index - 1
	if idx < 0 || idx >= len(entries) {
		return nil
	}
	return &entries[idx]
}

// LookupByPrefix finds the single entry whose id starts with prefix
// (case-insensitive, ULIDs are upper case). Returns nil when nothing or
// more than one entry matches.
func LookupByPrefix(entries []model.WindowEntry, prefix string) *model.WindowEntry {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}

	var match *model.WindowEntry
	for i := range entries {
		if strings.HasPrefix(entries[i].ID, prefix) {
			if match != nil {
				return nil
			}
			match = &entries[i]
		}
	}
	return match
}

// IndexOf returns the registry index of id, or -1.
func IndexOf(entries []model.WindowEntry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
