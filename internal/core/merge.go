package core

import (
	"github.com/jmylchreest/winsync/internal/model"
)

// MergeEntries unions two registries by id and returns the result in
// registry order. On conflict the newer copy wins (see
// model.WindowEntry.Newer), except selfID: the local copy of the caller's
// own entry always wins, since only the owner is authoritative for it.
// Inputs are not modified.
func MergeEntries(local, remote []model.WindowEntry, selfID string) []model.WindowEntry {
	byID := make(map[string]model.WindowEntry, len(local)+len(remote))

	for _, e := range local {
		if e.ID == "" {
			continue
		}
		if cur, ok := byID[e.ID]; ok && !e.Newer(cur) {
			continue
		}
		byID[e.ID] = e
	}

	for _, e := range remote {
		if e.ID == "" {
			continue
		}
		cur, ok := byID[e.ID]
		if ok && (e.ID == selfID || !e.Newer(cur)) {
			continue
		}
		byID[e.ID] = e
	}

	merged := make([]model.WindowEntry, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e.Clone())
	}
	SortEntries(merged)
	return merged
}

// PutEntry inserts or replaces the entry with e.ID, keeping registry order.
func PutEntry(entries []model.WindowEntry, e model.WindowEntry) []model.WindowEntry {
	out := RemoveEntry(entries, e.ID)
	out = append(out, e.Clone())
	SortEntries(out)
	return out
}

// RemoveEntry returns entries without the given id.
func RemoveEntry(entries []model.WindowEntry, id string) []model.WindowEntry {
	out := make([]model.WindowEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// Live returns the entries that are not departure tombstones.
func Live(entries []model.WindowEntry) []model.WindowEntry {
	out := make([]model.WindowEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Departed {
			out = append(out, e)
		}
	}
	return out
}

// ShapeChanged reports whether b differs from a by more than eps in any
// component.
func ShapeChanged(a, b model.Shape, eps float64) bool {
	return a.Differs(b, eps)
}

// DiffIDs returns the ids present only in after (joined) and only in
// before (left).
func DiffIDs(before, after []model.WindowEntry) (joined, left []string) {
	prev := make(map[string]bool, len(before))
	for _, e := range before {
		prev[e.ID] = true
	}
	next := make(map[string]bool, len(after))
	for _, e := range after {
		next[e.ID] = true
		if !prev[e.ID] {
			joined = append(joined, e.ID)
		}
	}
	for _, e := range before {
		if !next[e.ID] {
			left = append(left, e.ID)
		}
	}
	return joined, left
}
