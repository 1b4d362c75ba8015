package daemon

import (
	"crypto/sha256"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/store"
)

// ConfigWatcher reloads the config file when it changes on disk.
// A file that fails to load or validate leaves the current config in place.
type ConfigWatcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	configPath    string
	currentConfig *config.Config
	lastHash      [sha256.Size]byte

	onReloadCallback func(newConfig *config.Config)
	onErrorCallback  func(err error)

	watcher *store.FileWatcher
}

// NewConfigWatcher creates a ConfigWatcher for path. An empty path watches
// the default config location.
func NewConfigWatcher(path string, logger *slog.Logger) *ConfigWatcher {
	if path == "" {
		path = config.ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:     logger,
		configPath: path,
	}
}

// SetReloadCallback sets the callback invoked after a successful reload.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback invoked when a changed file is rejected.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching with initialConfig as the current config.
// Watching needs the config directory to exist.
func (w *ConfigWatcher) Start(initialConfig *config.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}
	w.currentConfig = initialConfig
	if data, err := os.ReadFile(w.configPath); err == nil {
		w.lastHash = sha256.Sum256(data)
	}

	fw, err := store.NewFileWatcher(w.configPath, w.reload, w.logger)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	w.watcher = fw

	w.logger.Debug("config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fw == nil {
		return
	}
	if err := fw.Stop(); err != nil {
		w.logger.Debug("config watcher stop", "error", err)
	}
	w.logger.Debug("config watcher stopped")
}

// CurrentConfig returns the last valid configuration.
func (w *ConfigWatcher) CurrentConfig() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentConfig
}

// reload runs on the watcher goroutine for every write to the file.
// Editors often write several times per save; unchanged content is ignored.
func (w *ConfigWatcher) reload() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Debug("failed to read config file", "path", w.configPath, "error", err)
		}
		return
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	w.lastHash = hash
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	w.mu.Unlock()

	newConfig, err := config.LoadConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but failed to load", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.configPath)
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}
