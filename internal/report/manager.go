// Package report writes the diagnostics of a code generation run in text,
// JSON, SARIF or YAML form.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// ErrUnsupportedFormat is returned for an unknown report format.
var ErrUnsupportedFormat = errors.New("unsupported report format")

// Format is a report format.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
	FormatYAML  Format = "yaml"
)

const toolName = "partecl-codegen"

// Version is reported as the tool version.
var Version = "0.1.0"

// RunResult is what one run of the generator produced.
type RunResult struct {
	Diagnostics []diag.Diagnostic
	Duration    time.Duration
	// Units is the number of translation units processed.
	Units        int
	FilesWritten []string
	Passes       []string
	// PassTimings is the time spent in each pass, summed over all units.
	PassTimings map[string]time.Duration
}

// Counts returns the number of diagnostics per severity.
func (r *RunResult) Counts() map[diag.Severity]int {
	out := make(map[diag.Severity]int)
	for _, d := range r.Diagnostics {
		out[d.Severity]++
	}
	return out
}

// Writer writes a report.
type Writer interface {
	Write(result *RunResult) error
}

// Manager picks a writer and a destination for the report.
type Manager struct {
	format    Format
	outputDir string
	filename  string
	timestamp bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFormat sets the report format.
func WithFormat(format Format) ManagerOption {
	return func(m *Manager) {
		m.format = format
	}
}

// WithOutputDir sets the directory report files are written to.
func WithOutputDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.outputDir = dir
	}
}

// WithFilename sets the report file name or path.
func WithFilename(filename string) ManagerOption {
	return func(m *Manager) {
		m.filename = filename
	}
}

// WithTimestamp adds a timestamp to generated file names.
func WithTimestamp() ManagerOption {
	return func(m *Manager) {
		m.timestamp = true
	}
}

// NewManager creates a report manager. The default is a text report in the
// current directory.
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		format:    FormatText,
		outputDir: ".",
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// CreateWriter returns the writer for format.
func (m *Manager) CreateWriter(format Format, w io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w, WithPrettyJSON()), nil
	case FormatSARIF:
		return NewSARIFWriter(w, WithPrettySARIF()), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// WriteTo writes the report to w.
func (m *Manager) WriteTo(w io.Writer, result *RunResult) error {
	writer, err := m.CreateWriter(m.format, w)
	if err != nil {
		return err
	}
	return writer.Write(result)
}

// Generate writes the report to a file and returns its path.
func (m *Manager) Generate(result *RunResult) (string, error) {
	path := m.filename
	if path == "" {
		path = filepath.Join(m.outputDir, m.generateFilename())
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := m.WriteTo(file, result); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", m.format, err)
	}
	return path, nil
}

func (m *Manager) generateFilename() string {
	base := "partecl_report"
	if m.timestamp {
		base += "_" + time.Now().Format("20060102_150405")
	}
	return base + "." + string(m.format)
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatSARIF, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// SupportedFormats lists the report formats.
func SupportedFormats() []Format {
	return []Format{FormatText, FormatJSON, FormatSARIF, FormatYAML}
}
