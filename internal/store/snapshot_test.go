package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/winsync/internal/model"
)

func TestEncodeSnapshot_Layout(t *testing.T) {
	entries := []model.WindowEntry{{
		ID:       "01A",
		Shape:    model.Shape{X: 1, Y: 2, W: 3, H: 4},
		Metadata: map[string]any{"foo": "bar"},
		LastSeen: 1234,
	}}

	data, err := EncodeSnapshot(entries)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"id":"01A","shape":{"x":1,"y":2,"w":3,"h":4},"metadata":{"foo":"bar"},"lastSeen":1234}]`,
		string(data))
}

func TestEncodeSnapshot_NilIsEmptyArray(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{name: "empty input", input: "", wantIDs: nil},
		{name: "whitespace", input: "  \n", wantIDs: nil},
		{name: "null", input: "null", wantIDs: []string{}},
		{name: "empty array", input: "[]", wantIDs: []string{}},
		{
			name:    "two entries",
			input:   `[{"id":"a","shape":{"x":0,"y":0,"w":1,"h":1},"metadata":{},"lastSeen":5},{"id":"b","lastSeen":6}]`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "skips entries missing id or lastSeen",
			input:   `[{"id":"","lastSeen":5},{"id":"x"},{"id":"ok","lastSeen":1}]`,
			wantIDs: []string{"ok"},
		},
		{
			name:    "keeps first of repeated ids",
			input:   `[{"id":"a","lastSeen":1},{"id":"a","lastSeen":2}]`,
			wantIDs: []string{"a"},
		},
		{name: "truncated json", input: `[{"id":"a",`, wantErr: true},
		{name: "object instead of array", input: `{"id":"a"}`, wantErr: true},
		{name: "wrong field types", input: `[{"id":5,"lastSeen":"x"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := DecodeSnapshot([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedSnapshot)
				return
			}
			require.NoError(t, err)
			if tt.wantIDs == nil {
				assert.Nil(t, entries)
				return
			}
			ids := make([]string, 0, len(entries))
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSnapshotRoundTripKeepsMetadata(t *testing.T) {
	in := []model.WindowEntry{{ID: "a", LastSeen: 1, Metadata: map[string]any{"n": 2.5, "s": "x"}}}
	data, err := EncodeSnapshot(in)
	require.NoError(t, err)

	out, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2.5, out[0].Metadata["n"])
	assert.Equal(t, "x", out[0].Metadata["s"])
}
