// Package shape samples the screen position and size of the local surface.
package shape

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmylchreest/winsync/internal/model"
)

// Tracker samples the current shape of the local surface.
type Tracker interface {
	Sample() (model.Shape, error)
}

// Source names a tracker implementation.
type Source string

const (
	SourceAuto     Source = "auto"
	SourceX11      Source = "x11"
	SourceTerminal Source = "terminal"
	SourceStatic   Source = "static"
)

// ValidSources returns all valid source values.
func ValidSources() []Source {
	return []Source{SourceAuto, SourceX11, SourceTerminal, SourceStatic}
}

// ErrUnavailable is returned by trackers whose host cannot answer.
var ErrUnavailable = errors.New("shape unavailable")

// FuncTracker adapts a function to the Tracker interface.
type FuncTracker func() (model.Shape, error)

// Sample calls f.
func (f FuncTracker) Sample() (model.Shape, error) {
	return f()
}

// StaticTracker always reports the same shape.
type StaticTracker struct {
	Shape model.Shape
}

// Sample returns the fixed shape.
func (t StaticTracker) Sample() (model.Shape, error) {
	return t.Shape, nil
}

// LastKnown wraps a tracker so that failures fall back to the last shape
// that was sampled successfully. It never returns an error.
type LastKnown struct {
	mu     sync.Mutex
	inner  Tracker
	last   model.Shape
	logger *slog.Logger
	failed bool
}

// NewLastKnown wraps inner, starting from initial as the last known shape.
func NewLastKnown(inner Tracker, initial model.Shape, logger *slog.Logger) *LastKnown {
	if logger == nil {
		logger = slog.Default()
	}
	return &LastKnown{inner: inner, last: initial, logger: logger}
}

// Sample returns the inner tracker's shape, or the last known one.
func (t *LastKnown) Sample() (model.Shape, error) {
	s, err := t.inner.Sample()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		// Log the first failure of a streak only, Sample runs every tick.
		if !t.failed {
			t.logger.Debug("shape sample failed, using last known shape", "error", err)
			t.failed = true
		}
		return t.last, nil
	}
	t.failed = false
	t.last = s
	return s, nil
}

// New creates the tracker for source wrapped in LastKnown. Auto tries X11,
// then the controlling terminal, then falls back to a static shape.
func New(source Source, fallback model.Shape, logger *slog.Logger) (Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Tracker
	switch Source(strings.ToLower(string(source))) {
	case SourceX11:
		t, err := NewX11Tracker(0)
		if err != nil {
			return nil, fmt.Errorf("x11 shape tracker: %w", err)
		}
		inner = t
	case SourceTerminal:
		t, err := NewTerminalTracker(nil)
		if err != nil {
			return nil, fmt.Errorf("terminal shape tracker: %w", err)
		}
		inner = t
	case SourceStatic:
		inner = StaticTracker{Shape: fallback}
	case SourceAuto, "":
		inner = detect(fallback, logger)
	default:
		return nil, fmt.Errorf("invalid shape source %q, must be one of: %v", source, ValidSources())
	}

	initial, err := inner.Sample()
	if err != nil {
		initial = fallback
	}
	return NewLastKnown(inner, initial, logger), nil
}

func detect(fallback model.Shape, logger *slog.Logger) Tracker {
	t, err := NewX11Tracker(0)
	if err == nil {
		logger.Debug("using x11 shape tracker", "window", t.Window())
		return t
	}
	logger.Debug("x11 shape tracker unavailable", "error", err)

	if tt, err := NewTerminalTracker(nil); err == nil {
		logger.Debug("using terminal shape tracker")
		return tt
	}

	logger.Debug("using static shape", "shape", fallback.String())
	return StaticTracker{Shape: fallback}
}

// Close releases the inner tracker if it holds a connection.
func (t *LastKnown) Close() {
	if c, ok := t.inner.(interface{ Close() }); ok {
		c.Close()
	}
}
