// Package output provides output formatters for window registries.
package output

import (
	"io"
	"time"

	"github.com/jmylchreest/winsync/internal/model"
)

// Formatter formats window entries for output.
type Formatter interface {
	// Format writes formatted entries to the writer.
	Format(w io.Writer, entries []model.WindowEntry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatLine  FormatType = "line"
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// ValidFormats returns all valid format values.
func ValidFormats() []FormatType {
	return []FormatType{FormatLine, FormatPlain, FormatJSON, FormatYAML, FormatIDs}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatLine:
		return NewLineFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string           // Custom template for line/plain format
	ShowIndex bool             // Show 1-based index prefix
	ShowAge   bool             // Show time since last heartbeat
	ShowMeta  bool             // Show metadata
	Separator string           // Field separator for line format
	SelfID    string           // Entry to mark as the local surface
	Now       func() time.Time // Clock for ages (default time.Now)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		ShowAge:   true,
		ShowMeta:  true,
		Separator: " | ",
	}
}

func (o FormatterOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
