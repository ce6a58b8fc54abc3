package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// JSONReport is the document written by JSONWriter and YAMLWriter.
type JSONReport struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Tool        ToolInfo          `json:"tool" yaml:"tool"`
	Summary     Summary           `json:"summary" yaml:"summary"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Files       []string          `json:"files_written,omitempty" yaml:"files_written,omitempty"`
}

// ToolInfo describes the tool that produced the report.
type ToolInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Version string   `json:"version" yaml:"version"`
	Passes  []string `json:"passes,omitempty" yaml:"passes,omitempty"`
}

// Summary counts diagnostics.
type Summary struct {
	Total      int            `json:"total" yaml:"total"`
	BySeverity map[string]int `json:"by_severity" yaml:"by_severity"`
	ByKind     map[string]int `json:"by_kind" yaml:"by_kind"`
	Units      int            `json:"units" yaml:"units"`
	Duration   string         `json:"duration" yaml:"duration"`
	// PassTimings maps pass names to their formatted duration.
	PassTimings map[string]string `json:"pass_timings,omitempty" yaml:"pass_timings,omitempty"`
}

// newReport builds the report document. now is injected for tests.
func newReport(result *RunResult, now time.Time) *JSONReport {
	r := &JSONReport{
		GeneratedAt: now,
		Tool:        ToolInfo{Name: toolName, Version: Version, Passes: result.Passes},
		Summary: Summary{
			Total:      len(result.Diagnostics),
			BySeverity: make(map[string]int),
			ByKind:     make(map[string]int),
			Units:      result.Units,
			Duration:   result.Duration.String(),
		},
		Diagnostics: make([]diag.Diagnostic, 0, len(result.Diagnostics)),
		Files:       result.FilesWritten,
	}
	if len(result.PassTimings) > 0 {
		r.Summary.PassTimings = make(map[string]string, len(result.PassTimings))
		for name, d := range result.PassTimings {
			r.Summary.PassTimings[name] = d.String()
		}
	}
	for _, d := range result.Diagnostics {
		r.Summary.BySeverity[string(d.Severity)]++
		r.Summary.ByKind[d.Kind.String()]++
		r.Diagnostics = append(r.Diagnostics, d)
	}
	return r
}

// JSONWriter writes a JSON report.
type JSONWriter struct {
	writer io.Writer
	pretty bool
	now    func() time.Time
}

// JSONOption configures a JSONWriter.
type JSONOption func(*JSONWriter)

// WithPrettyJSON indents the output.
func WithPrettyJSON() JSONOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(writer io.Writer, options ...JSONOption) *JSONWriter {
	w := &JSONWriter{writer: writer, now: time.Now}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Write writes the report.
func (w *JSONWriter) Write(result *RunResult) error {
	report := newReport(result, w.now())

	var (
		data []byte
		err  error
	)
	if w.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	_, err = w.writer.Write(append(data, '\n'))
	return err
}
