package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/winsync/internal/model"
)

// LineFormatter formats one window per line, for menus and scripts.
type LineFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewLineFormatter creates a new line formatter.
func NewLineFormatter(opts FormatterOptions) *LineFormatter {
	f := &LineFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("line").Funcs(templateFuncs(opts.now)).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries one per line.
func (f *LineFormatter) Format(w io.Writer, entries []model.WindowEntry) error {
	now := f.opts.now()
	for i, e := range entries {
		line := f.formatLine(i+1, &e, now)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single entry line.
func (f *LineFormatter) formatLine(index int, e *model.WindowEntry, now time.Time) string {
	// Use custom template if available
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, f.data(index, e, now)); err == nil {
			return buf.String()
		}
	}

	// Default format: [index] [*]id geometry [age] [meta]
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}

	id := e.ID
	if f.opts.SelfID != "" && e.ID == f.opts.SelfID {
		id = "*" + id
	}
	parts = append(parts, id, e.Shape.String())

	if f.opts.ShowAge {
		parts = append(parts, compactAge(e.Age(now)))
	}

	if f.opts.ShowMeta && len(e.Metadata) > 0 {
		parts = append(parts, formatMetadata(e.Metadata))
	}

	return strings.Join(parts, sep)
}

func (f *LineFormatter) data(index int, e *model.WindowEntry, now time.Time) templateData {
	return templateData{
		Index:  index,
		Window: e,
		Age:    compactAge(e.Age(now)),
		Self:   e.ID == f.opts.SelfID,
	}
}

// templateData provides data for custom templates.
type templateData struct {
	Index  int
	Window *model.WindowEntry
	Age    string
	Self   bool
}

// templateFuncs returns template helper functions.
func templateFuncs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"age": func(lastSeen int64) string {
			return compactAge(now().Sub(time.UnixMilli(lastSeen)))
		},
		"meta": func(m map[string]any, key string) string {
			v, ok := m[key]
			if !ok {
				return ""
			}
			return fmt.Sprint(v)
		},
		"geometry": func(s model.Shape) string {
			return s.String()
		},
	}
}

// compactAge returns a short age such as "now", "3s" or "2m".
func compactAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// formatMetadata renders metadata as key=value pairs in key order.
func formatMetadata(m map[string]any) string {
	keys := slices.Sorted(maps.Keys(m))
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(pairs, ",")
}
