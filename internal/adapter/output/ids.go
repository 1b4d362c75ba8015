package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/winsync/internal/model"
)

// IDsFormatter outputs just the window IDs, one per line.
// Useful for piping to other commands (e.g., winsync prune --id).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes window IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, entries []model.WindowEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.ID); err != nil {
			return err
		}
	}
	return nil
}
