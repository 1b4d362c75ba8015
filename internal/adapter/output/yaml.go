package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/winsync/internal/model"
)

// YAMLFormatter formats entries as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes entries as YAML.
func (f *YAMLFormatter) Format(w io.Writer, entries []model.WindowEntry) error {
	if entries == nil {
		entries = []model.WindowEntry{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(entries); err != nil {
		return err
	}
	return encoder.Close()
}
