package store

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_SeesReplacementOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	var changes atomic.Int32
	w, err := NewFileWatcher(path, func() { changes.Add(1) }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	// Other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("[]"), 0600))

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("[]"), 0600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StopWaitsForLoop(t *testing.T) {
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "registry.json"), func() {}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "gone", "registry.json"), func() {}, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start())
}
