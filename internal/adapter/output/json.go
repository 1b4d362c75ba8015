package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/winsync/internal/model"
)

// JSONFormatter formats entries as JSON, in the same layout as the stored
// snapshot.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes entries as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, entries []model.WindowEntry) error {
	if entries == nil {
		entries = []model.WindowEntry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// FormatSingle writes a single entry as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, e *model.WindowEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(e)
}
