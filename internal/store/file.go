package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements SharedStore on top of a single JSON file. Every
// process of the same user that points at the same path shares the store.
// Writes go to a temp file that is renamed over the target, so readers
// always observe a whole value.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	// Hash of the last value this store wrote or delivered. Change events
	// whose content matches are our own writes (or duplicates) and are not
	// forwarded.
	lastHash string

	handlers map[int]RemoteChangeHandler
	nextID   int
	watcher  *FileWatcher
	closed   bool
}

var _ SharedStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for path, creating its directory.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &FileStore{
		path:     path,
		logger:   logger,
		handlers: make(map[int]RemoteChangeHandler),
	}, nil
}

// Path returns the registry file path.
func (s *FileStore) Path() string {
	return s.path
}

// ReadAll returns the file contents, or nil if the file does not exist.
func (s *FileStore) ReadAll() ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Write atomically replaces the file contents.
func (s *FileStore) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// Record the hash before the rename lands so the watcher recognises
	// the resulting event as ours.
	s.lastHash = contentHash(data)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the registry file. Surfaces still running repopulate it on
// their next heartbeat.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.lastHash = ""
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}

// OnRemoteChange registers handler and starts the file watcher on first use.
// If the watcher cannot be started the handler is still registered; the
// registry then relies on heartbeats alone.
func (s *FileStore) OnRemoteChange(handler RemoteChangeHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	if s.watcher == nil {
		w, err := NewFileWatcher(s.path, s.onFileChanged, s.logger)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			s.logger.Warn("failed to watch registry file, relying on heartbeats", "path", s.path, "error", err)
		} else {
			s.watcher = w
		}
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// onFileChanged is called by the watcher after the file was written or
// replaced.
func (s *FileStore) onFileChanged() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("failed to read changed registry file", "path", s.path, "error", err)
		}
		return
	}

	hash := contentHash(data)

	s.mu.Lock()
	if s.closed || hash == s.lastHash {
		s.mu.Unlock()
		return
	}
	s.lastHash = hash
	handlers := make([]RemoteChangeHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	s.logger.Debug("registry changed by another surface", "path", s.path, "bytes", len(data))
	for _, h := range handlers {
		h(data)
	}
}

// Close stops the watcher. Further writes fail with ErrStoreClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = nil
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		return w.Stop()
	}
	return nil
}
