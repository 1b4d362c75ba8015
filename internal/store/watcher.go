package store

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a single file for changes and invokes a callback.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	onChange func()
	logger   *slog.Logger
	done     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewFileWatcher creates a new file watcher for filePath.
func NewFileWatcher(filePath string, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw := &FileWatcher{
		watcher:  watcher,
		filePath: filePath,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	return fw, nil
}

// Start begins watching the file for changes.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	// Watch the directory containing the file: writers replace the file by
	// rename, which drops any watch on the old inode.
	dir := filepath.Dir(fw.filePath)
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		fw.watcher.Close()
		return err
	}

	go fw.watch()
	return nil
}

// watch is the main watch loop.
func (fw *FileWatcher) watch() {
	defer close(fw.stopped)
	filename := filepath.Base(fw.filePath)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Only care about our file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// A rename onto the path arrives as Create
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fw.onChange()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

// Stop stops the file watcher and waits for the loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	close(fw.done)
	fw.mu.Unlock()

	err := fw.watcher.Close()
	<-fw.stopped
	return err
}
