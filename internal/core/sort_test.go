package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/winsync/internal/model"
)

func TestSortEntries_OrderIsFunctionOfIDSet(t *testing.T) {
	a := []model.WindowEntry{entry("5", 1, 0), entry("1", 1, 0), entry("3", 1, 0)}
	b := []model.WindowEntry{entry("3", 1, 0), entry("5", 1, 0), entry("1", 1, 0)}

	SortEntries(a)
	SortEntries(b)

	assert.Equal(t, []string{"1", "3", "5"}, IDs(a))
	assert.Equal(t, IDs(a), IDs(b))
}

func TestSort_Empty(t *testing.T) {
	var entries []model.WindowEntry
	Sort(entries, DefaultSortOptions())
	assert.Len(t, entries, 0)
}

func TestSort_ByLastSeenDesc(t *testing.T) {
	entries := []model.WindowEntry{entry("a", 100, 0), entry("b", 300, 0), entry("c", 200, 0)}

	Sort(entries, SortOptions{Field: SortByLastSeen, Order: SortDesc})

	assert.Equal(t, []string{"b", "c", "a"}, IDs(entries))
}

func TestSort_ByPosition(t *testing.T) {
	entries := []model.WindowEntry{
		{ID: "a", Shape: model.Shape{X: 500, Y: 0}},
		{ID: "b", Shape: model.Shape{X: 0, Y: 400}},
		{ID: "c", Shape: model.Shape{X: 0, Y: 0}},
	}

	Sort(entries, SortOptions{Field: SortByPosition, Order: SortAsc})

	assert.Equal(t, []string{"c", "a", "b"}, IDs(entries))
}

func TestSort_TiesFallBackToID(t *testing.T) {
	entries := []model.WindowEntry{entry("b", 1, 0), entry("a", 1, 0)}
	Sort(entries, SortOptions{Field: SortByLastSeen, Order: SortAsc})
	assert.Equal(t, []string{"a", "b"}, IDs(entries))
}

func TestSameIDs(t *testing.T) {
	assert.True(t, SameIDs(nil, []model.WindowEntry{}))
	assert.True(t, SameIDs([]model.WindowEntry{entry("1", 1, 0)}, []model.WindowEntry{entry("1", 9, 5)}))
	assert.False(t, SameIDs([]model.WindowEntry{entry("1", 1, 0)}, []model.WindowEntry{entry("2", 1, 0)}))
	assert.False(t, SameIDs([]model.WindowEntry{entry("1", 1, 0)}, nil))
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		input string
		want  SortField
	}{
		{"id", SortByID},
		{"", SortByID},
		{"seen", SortByLastSeen},
		{"LAST_SEEN", SortByLastSeen},
		{"pos", SortByPosition},
		{"unknown", SortByID},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSortField(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	got, _ := ParseSortOrder("desc")
	assert.Equal(t, SortDesc, got)
	got, _ = ParseSortOrder("whatever")
	assert.Equal(t, SortAsc, got)
}
