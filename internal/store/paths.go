package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDir returns the directory holding the shared registry. Priority:
// 1) XDG_RUNTIME_DIR/winsync
// 2) /run/user/<uid>/winsync (if /run/user/<uid> exists)
// 3) /tmp/winsync-runtime-<uid>
// The runtime directory is cleared at logout, so membership never
// outlives the session.
func RuntimeDir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "winsync"), nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return filepath.Join(runUserDir, "winsync"), nil
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("winsync-runtime-%d", uid)), nil
}

// RegistryPath returns the default path of the shared registry file.
func RegistryPath() (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "registry.json"), nil
}
