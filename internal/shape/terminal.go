package shape

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/jmylchreest/winsync/internal/model"
)

// TerminalTracker reports the controlling terminal's size in character
// cells. Terminals do not expose their screen position, so X and Y are 0.
type TerminalTracker struct {
	fd int
}

// NewTerminalTracker creates a tracker for f, or stdout when f is nil.
func NewTerminalTracker(f *os.File) (*TerminalTracker, error) {
	if f == nil {
		f = os.Stdout
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: %s is not a terminal", ErrUnavailable, f.Name())
	}
	return &TerminalTracker{fd: fd}, nil
}

// Sample returns the terminal size.
func (t *TerminalTracker) Sample() (model.Shape, error) {
	w, h, err := term.GetSize(t.fd)
	if err != nil {
		return model.Shape{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return model.Shape{W: float64(w), H: float64(h)}, nil
}
