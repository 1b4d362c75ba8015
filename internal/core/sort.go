// Package core provides the pure merge, ordering, pruning and lookup logic
// for window registries. Nothing here performs I/O.
package core

import (
	"slices"
	"sort"
	"strings"

	"github.com/jmylchreest/winsync/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByID       SortField = "id"
	SortByLastSeen SortField = "last_seen"
	SortByPosition SortField = "position"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria for display.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns registry order (ascending id).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByID,
		Order: SortAsc,
	}
}

// SortEntries puts entries into registry order: ascending id, byte-wise.
// Every surface derives the same order from the same id set.
func SortEntries(entries []model.WindowEntry) {
	slices.SortFunc(entries, func(a, b model.WindowEntry) int {
		return strings.Compare(a.ID, b.ID)
	})
}

// Sort sorts entries in place for display. Ties fall back to id order so
// the result stays deterministic.
func Sort(entries []model.WindowEntry, opts SortOptions) {
	if len(entries) == 0 {
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		var less, equal bool

		switch opts.Field {
		case SortByLastSeen:
			less, equal = a.LastSeen < b.LastSeen, a.LastSeen == b.LastSeen
		case SortByPosition:
			if a.Shape.Y != b.Shape.Y {
				less = a.Shape.Y < b.Shape.Y
			} else {
				less, equal = a.Shape.X < b.Shape.X, a.Shape.X == b.Shape.X
			}
		default:
			less, equal = a.ID < b.ID, a.ID == b.ID
		}

		if equal {
			less = a.ID < b.ID
		}
		if opts.Order == SortDesc {
			return !less
		}
		return less
	})
}

// IDs returns the ids of entries in their current order.
func IDs(entries []model.WindowEntry) []string {
	ids := make([]string, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
	}
	return ids
}

// SameIDs reports whether two registries hold the same ordered id sequence.
func SameIDs(a, b []model.WindowEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "id", "":
		return SortByID, nil
	case "last_seen", "lastseen", "seen", "s":
		return SortByLastSeen, nil
	case "position", "pos", "p":
		return SortByPosition, nil
	default:
		return SortByID, nil
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return SortAsc, nil
	}
}
