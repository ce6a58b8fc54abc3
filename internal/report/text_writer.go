package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// TextWriter writes a human-readable report.
type TextWriter struct {
	writer    io.Writer
	verbose   bool
	showStats bool
}

// TextOption configures a TextWriter.
type TextOption func(*TextWriter)

// WithVerbose adds per-kind counts and offending constructs.
func WithVerbose() TextOption {
	return func(w *TextWriter) {
		w.verbose = true
	}
}

// WithoutStats drops the summary section.
func WithoutStats() TextOption {
	return func(w *TextWriter) {
		w.showStats = false
	}
}

// NewTextWriter creates a text writer.
func NewTextWriter(writer io.Writer, options ...TextOption) *TextWriter {
	w := &TextWriter{writer: writer, showStats: true}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Write writes the report.
func (w *TextWriter) Write(result *RunResult) error {
	if len(result.Diagnostics) == 0 {
		w.writeClean(result)
	} else {
		if w.showStats {
			w.writeStatistics(result)
		}
		if err := w.writeDiagnostics(result); err != nil {
			return err
		}
	}
	if w.verbose {
		return w.writePassTimings(result)
	}
	return nil
}

// writePassTimings lists pass durations in execution order with their share
// of the total.
func (w *TextWriter) writePassTimings(result *RunResult) error {
	if len(result.PassTimings) == 0 {
		return nil
	}
	var total time.Duration
	for _, d := range result.PassTimings {
		total += d
	}

	fmt.Fprintf(w.writer, "\nPass timings:\n")
	tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', tabwriter.AlignRight)
	for _, name := range result.Passes {
		d := result.PassTimings[name]
		pct := 0.0
		if total > 0 {
			pct = float64(d) / float64(total) * 100
		}
		fmt.Fprintf(tw, "  %s\t%v\t(%.1f%%)\t\n", name, d, pct)
	}
	fmt.Fprintf(tw, "  total\t%v\t\t\n", total)
	return tw.Flush()
}

func (w *TextWriter) writeClean(result *RunResult) {
	fmt.Fprintf(w.writer, "No diagnostics.\n\n")
	fmt.Fprintf(w.writer, "Summary:\n")
	fmt.Fprintf(w.writer, "  Units processed: %d\n", result.Units)
	fmt.Fprintf(w.writer, "  Files written: %d\n", len(result.FilesWritten))
	fmt.Fprintf(w.writer, "  Duration: %s\n", result.Duration)
}

func (w *TextWriter) writeStatistics(result *RunResult) {
	counts := result.Counts()
	fmt.Fprintf(w.writer, "Summary:\n")
	fmt.Fprintf(w.writer, "--------\n")
	fmt.Fprintf(w.writer, "Total diagnostics: %d\n", len(result.Diagnostics))
	fmt.Fprintf(w.writer, "  Errors: %d\n", counts[diag.SeverityError])
	fmt.Fprintf(w.writer, "  Warnings: %d\n", counts[diag.SeverityWarning])
	fmt.Fprintf(w.writer, "  Notes: %d\n", counts[diag.SeverityNote])
	fmt.Fprintf(w.writer, "Units processed: %d\n", result.Units)
	fmt.Fprintf(w.writer, "Files written: %d\n\n", len(result.FilesWritten))

	if w.verbose {
		byKind := make(map[string]int)
		for _, d := range result.Diagnostics {
			byKind[d.Kind.String()]++
		}
		kinds := make([]string, 0, len(byKind))
		for k := range byKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintf(w.writer, "By kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(w.writer, "  %s: %d\n", k, byKind[k])
		}
		fmt.Fprintf(w.writer, "\n")
	}
}

// writeDiagnostics groups diagnostics by file, files in name order.
func (w *TextWriter) writeDiagnostics(result *RunResult) error {
	groups := make(map[string][]diag.Diagnostic)
	var files []string
	for _, d := range result.Diagnostics {
		if _, ok := groups[d.File]; !ok {
			files = append(files, d.File)
		}
		groups[d.File] = append(groups[d.File], d)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Fprintf(w.writer, "File: %s\n", file)
		fmt.Fprintf(w.writer, "%s\n", strings.Repeat("-", 50))

		tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', 0)
		for _, d := range groups[file] {
			fmt.Fprintf(tw, "  %s\t%d:%d\t%s\t%s\n", d.Severity, d.Line, d.Column, d.Kind, d.Message)
			if w.verbose && d.Construct != "" {
				fmt.Fprintf(tw, "  \t\t\tat: %s\n", d.Construct)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w.writer, "\n")
	}
	return nil
}
