// Package diag collects the non-fatal diagnostics raised while generating
// kernel code and logs them as they arrive.
package diag

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// UnresolvableReference: a construct refers to something that cannot be
	// resolved, e.g. a non-literal argv index or an argument past the end of a call.
	UnresolvableReference Kind = iota + 1
	// ExhaustedResource: more stdin reads than configured stdin fields.
	ExhaustedResource
	// UnrecognizedType: an output type the generators do not know.
	UnrecognizedType
	// StructuralViolation: the program does not have the shape kernels need.
	StructuralViolation
	// EditConflict: two rewrites target overlapping source text.
	EditConflict
)

func (k Kind) String() string {
	switch k {
	case UnresolvableReference:
		return "unresolvable-reference"
	case ExhaustedResource:
		return "exhausted-resource"
	case UnrecognizedType:
		return "unrecognized-type"
	case StructuralViolation:
		return "structural-violation"
	case EditConflict:
		return "edit-conflict"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name in JSON and YAML reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := UnresolvableReference; c <= EditConflict; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic kind %q", text)
}

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Diagnostic is one reported condition, pinned to a source location.
type Diagnostic struct {
	Kind      Kind     `json:"kind" yaml:"kind"`
	Severity  Severity `json:"severity" yaml:"severity"`
	File      string   `json:"file" yaml:"file"`
	Line      int      `json:"line" yaml:"line"`
	Column    int      `json:"column" yaml:"column"`
	Construct string   `json:"construct,omitempty" yaml:"construct,omitempty"`
	Message   string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
	if d.Construct != "" {
		return fmt.Sprintf("%s: %s: %s [%s]: %s", loc, d.Severity, d.Kind, d.Construct, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %s", loc, d.Severity, d.Kind, d.Message)
}

// Sink receives diagnostics. Passes depend on this rather than on Collector.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is a Sink that logs every diagnostic and keeps it for the final
// report. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	log   logrus.FieldLogger
	diags []Diagnostic
}

// NewCollector creates a collector logging through log. A nil log discards
// log output.
func NewCollector(log logrus.FieldLogger) *Collector {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Collector{log: log}
}

// Report records d and logs it.
func (c *Collector) Report(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityWarning
	}

	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()

	entry := c.log.WithFields(logrus.Fields{
		"file": d.File,
		"line": d.Line,
		"kind": d.Kind.String(),
	})
	if d.Construct != "" {
		entry = entry.WithField("construct", d.Construct)
	}
	switch d.Severity {
	case SeverityError:
		entry.Error(d.Message)
	case SeverityNote:
		entry.Info(d.Message)
	default:
		entry.Warn(d.Message)
	}
}

// Diagnostics returns the collected diagnostics ordered by file and position.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	out := append([]Diagnostic(nil), c.diags...)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// Count returns the number of diagnostics of kind k.
func (c *Collector) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}
