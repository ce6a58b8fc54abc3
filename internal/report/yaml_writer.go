package report

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes the JSON report document as YAML.
type YAMLWriter struct {
	writer io.Writer
	now    func() time.Time
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(writer io.Writer) *YAMLWriter {
	return &YAMLWriter{writer: writer, now: time.Now}
}

// Write writes the report.
func (w *YAMLWriter) Write(result *RunResult) error {
	enc := yaml.NewEncoder(w.writer)
	enc.SetIndent(2)
	if err := enc.Encode(newReport(result, w.now())); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return enc.Close()
}
