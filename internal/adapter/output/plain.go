package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/winsync/internal/identity"
	"github.com/jmylchreest/winsync/internal/model"
)

// PlainFormatter formats entries as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs(opts.now)).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries as plain text.
func (f *PlainFormatter) Format(w io.Writer, entries []model.WindowEntry) error {
	now := f.opts.now()
	for i, e := range entries {
		if err := f.formatEntry(w, i+1, &e, now); err != nil {
			return err
		}
	}
	return nil
}

// formatEntry formats a single entry.
func (f *PlainFormatter) formatEntry(w io.Writer, index int, e *model.WindowEntry, now time.Time) error {
	// Use custom template if available
	if f.template != nil {
		data := templateData{
			Index:  index,
			Window: e,
			Age:    humanize.RelTime(e.LastSeenTime(), now, "ago", "from now"),
			Self:   e.ID == f.opts.SelfID,
		}
		return f.template.Execute(w, data)
	}

	// Default format
	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	sb.WriteString(e.ID)
	if f.opts.SelfID != "" && e.ID == f.opts.SelfID {
		sb.WriteString(" (this window)")
	}
	sb.WriteString(" " + e.Shape.String())

	if f.opts.ShowAge {
		sb.WriteString(fmt.Sprintf(" (seen %s)", humanize.RelTime(e.LastSeenTime(), now, "ago", "from now")))
	}

	sb.WriteString("\n")

	if f.opts.ShowMeta && len(e.Metadata) > 0 {
		sb.WriteString("    " + formatMetadata(e.Metadata) + "\n")
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FormatField outputs a specific field from an entry.
func FormatField(e *model.WindowEntry, field string) string {
	if len(field) > 5 && strings.EqualFold(field[:5], "meta.") {
		if v, ok := e.Metadata[field[5:]]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}

	switch strings.ToLower(field) {
	case "id":
		return e.ID
	case "x":
		return fmt.Sprint(e.Shape.X)
	case "y":
		return fmt.Sprint(e.Shape.Y)
	case "w", "width":
		return fmt.Sprint(e.Shape.W)
	case "h", "height":
		return fmt.Sprint(e.Shape.H)
	case "last_seen", "lastseen":
		return fmt.Sprint(e.LastSeen)
	case "center", "centre":
		cx, cy := e.Shape.Center()
		return fmt.Sprintf("%g,%g", cx, cy)
	case "joined":
		if t, ok := identity.Time(e.ID); ok {
			return t.UTC().Format(time.RFC3339)
		}
		return ""
	case "meta", "metadata":
		return formatMetadata(e.Metadata)
	case "shape", "geometry":
		fallthrough
	default:
		return e.Shape.String()
	}
}
