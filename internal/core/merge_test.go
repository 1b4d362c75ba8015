package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/model"
)

func entry(id string, lastSeen int64, x float64) model.WindowEntry {
	return model.WindowEntry{ID: id, LastSeen: lastSeen, Shape: model.Shape{X: x, W: 100, H: 100}}
}

func TestMergeEntries_Union(t *testing.T) {
	local := []model.WindowEntry{entry("3", 10, 0), entry("1", 10, 0)}
	remote := []model.WindowEntry{entry("5", 10, 0), entry("1", 10, 0)}

	merged := MergeEntries(local, remote, "1")

	assert.Equal(t, []string{"1", "3", "5"}, IDs(merged))
}

func TestMergeEntries_LargerLastSeenWins(t *testing.T) {
	local := []model.WindowEntry{entry("self", 1, 0), entry("peer", 100, 1)}
	remote := []model.WindowEntry{entry("peer", 200, 2)}

	merged := MergeEntries(local, remote, "self")
	peer := LookupByID(merged, "peer")
	require.NotNil(t, peer)
	assert.Equal(t, int64(200), peer.LastSeen)
	assert.Equal(t, 2.0, peer.Shape.X)

	// Older remote copy does not replace a fresher local one
	merged = MergeEntries(local, []model.WindowEntry{entry("peer", 50, 9)}, "self")
	peer = LookupByID(merged, "peer")
	require.NotNil(t, peer)
	assert.Equal(t, 1.0, peer.Shape.X)
}

func TestMergeEntries_TombstoneSupersedesLiveCopy(t *testing.T) {
	gone := entry("peer", 101, 1)
	gone.Departed = true
	live := []model.WindowEntry{entry("self", 1, 0), entry("peer", 100, 1)}

	for name, merged := range map[string][]model.WindowEntry{
		"remote tombstone": MergeEntries(live, []model.WindowEntry{gone}, "self"),
		"local tombstone":  MergeEntries([]model.WindowEntry{entry("self", 1, 0), gone}, live, "self"),
	} {
		t.Run(name, func(t *testing.T) {
			peer := LookupByID(merged, "peer")
			require.NotNil(t, peer)
			assert.True(t, peer.Departed)
			assert.Equal(t, []string{"self"}, IDs(Live(merged)))
		})
	}

	// Equal timestamps still resolve to the tombstone.
	tie := gone
	tie.LastSeen = 100
	merged := MergeEntries(live, []model.WindowEntry{tie}, "self")
	assert.True(t, LookupByID(merged, "peer").Departed)
}

func TestLive(t *testing.T) {
	gone := entry("2", 10, 0)
	gone.Departed = true
	entries := []model.WindowEntry{entry("1", 10, 0), gone, entry("3", 10, 0)}

	assert.Equal(t, []string{"1", "3"}, IDs(Live(entries)))
	assert.Len(t, entries, 3)
	assert.Empty(t, Live(nil))
}

func TestMergeEntries_SelfAuthority(t *testing.T) {
	local := []model.WindowEntry{entry("self", 100, 42)}

	tests := []struct {
		name   string
		remote model.WindowEntry
	}{
		{name: "stale foreign copy", remote: entry("self", 50, 7)},
		{name: "newer foreign copy", remote: entry("self", 500, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := MergeEntries(local, []model.WindowEntry{tt.remote}, "self")
			require.Len(t, merged, 1)
			assert.Equal(t, 42.0, merged[0].Shape.X)
			assert.Equal(t, int64(100), merged[0].LastSeen)
		})
	}
}

func TestMergeEntries_SelfMissingLocallyTakesRemote(t *testing.T) {
	merged := MergeEntries(nil, []model.WindowEntry{entry("self", 5, 3)}, "self")
	require.Len(t, merged, 1)
	assert.Equal(t, 3.0, merged[0].Shape.X)
}

func TestMergeEntries_DropsEmptyIDsAndDoesNotAlias(t *testing.T) {
	local := []model.WindowEntry{{ID: "a", LastSeen: 1, Metadata: map[string]any{"k": "v"}}}
	remote := []model.WindowEntry{{ID: "", LastSeen: 1}}

	merged := MergeEntries(local, remote, "a")
	require.Len(t, merged, 1)

	merged[0].Metadata["k"] = "changed"
	assert.Equal(t, "v", local[0].Metadata["k"])
}

func TestMergeEntries_Commutative(t *testing.T) {
	a := []model.WindowEntry{entry("1", 10, 0), entry("2", 30, 0)}
	b := []model.WindowEntry{entry("2", 20, 1), entry("3", 10, 0)}

	ab := MergeEntries(a, b, "")
	ba := MergeEntries(b, a, "")

	assert.Equal(t, ab, ba)
}

func TestPutAndRemoveEntry(t *testing.T) {
	entries := []model.WindowEntry{entry("1", 1, 0), entry("3", 1, 0)}

	entries = PutEntry(entries, entry("5", 1, 0))
	assert.Equal(t, []string{"1", "3", "5"}, IDs(entries))

	entries = PutEntry(entries, entry("3", 2, 9))
	assert.Equal(t, []string{"1", "3", "5"}, IDs(entries))
	assert.Equal(t, 9.0, entries[1].Shape.X)

	entries = RemoveEntry(entries, "3")
	assert.Equal(t, []string{"1", "5"}, IDs(entries))
}

func TestShapeChanged(t *testing.T) {
	a := model.Shape{X: 0, Y: 0, W: 100, H: 100}
	assert.False(t, ShapeChanged(a, model.Shape{X: 0.2, W: 100, H: 100}, 0.5))
	assert.True(t, ShapeChanged(a, model.Shape{X: 2, W: 100, H: 100}, 0.5))
}

func TestDiffIDs(t *testing.T) {
	before := []model.WindowEntry{entry("1", 1, 0), entry("3", 1, 0)}
	after := []model.WindowEntry{entry("1", 1, 0), entry("5", 1, 0)}

	joined, left := DiffIDs(before, after)
	assert.Equal(t, []string{"5"}, joined)
	assert.Equal(t, []string{"3"}, left)

	joined, left = DiffIDs(after, after)
	assert.Empty(t, joined)
	assert.Empty(t, left)
}
