package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// SARIFWriter writes a SARIF 2.1.0 log.
type SARIFWriter struct {
	writer io.Writer
	pretty bool
}

// SARIFOption configures a SARIFWriter.
type SARIFOption func(*SARIFWriter)

// WithPrettySARIF indents the output.
func WithPrettySARIF() SARIFOption {
	return func(w *SARIFWriter) {
		w.pretty = true
	}
}

// NewSARIFWriter creates a SARIF writer.
func NewSARIFWriter(writer io.Writer, options ...SARIFOption) *SARIFWriter {
	w := &SARIFWriter{writer: writer}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Write writes the report.
func (w *SARIFWriter) Write(result *RunResult) error {
	log := w.generateSARIFReport(result)

	var (
		data []byte
		err  error
	)
	if w.pretty {
		data, err = json.MarshalIndent(log, "", "  ")
	} else {
		data, err = json.Marshal(log)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF report: %w", err)
	}

	_, err = w.writer.Write(append(data, '\n'))
	return err
}

// ruleKinds are the diagnostic kinds in rule index order.
var ruleKinds = []diag.Kind{
	diag.UnresolvableReference,
	diag.ExhaustedResource,
	diag.UnrecognizedType,
	diag.StructuralViolation,
	diag.EditConflict,
}

var ruleDescriptions = map[diag.Kind]string{
	diag.UnresolvableReference: "A construct refers to something the generator cannot resolve.",
	diag.ExhaustedResource:     "More stdin reads than configured stdin fields.",
	diag.UnrecognizedType:      "An input or output type the generator does not know.",
	diag.StructuralViolation:   "The program does not have the shape a kernel needs.",
	diag.EditConflict:          "Two rewrites target overlapping source text.",
}

func (w *SARIFWriter) generateSARIFReport(result *RunResult) *SARIF {
	return &SARIF{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    toolName,
						Version: Version,
						Rules:   w.generateRules(),
					},
				},
				Results: w.generateResults(result),
			},
		},
	}
}

func (w *SARIFWriter) generateRules() []Rule {
	rules := make([]Rule, 0, len(ruleKinds))
	for _, k := range ruleKinds {
		rules = append(rules, Rule{
			ID:               k.String(),
			Name:             k.String(),
			ShortDescription: Description{Text: ruleDescriptions[k]},
		})
	}
	return rules
}

func (w *SARIFWriter) generateResults(result *RunResult) []Result {
	results := make([]Result, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		r := Result{
			RuleID:    d.Kind.String(),
			RuleIndex: ruleIndex(d.Kind),
			Level:     mapSeverityToSARIF(d.Severity),
			Message:   Message{Text: d.Message},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: d.File},
						Region: Region{
							StartLine:   d.Line,
							StartColumn: d.Column,
						},
					},
				},
			},
		}
		if d.Construct != "" {
			r.Properties = map[string]interface{}{"construct": d.Construct}
		}
		results = append(results, r)
	}
	return results
}

func ruleIndex(k diag.Kind) int {
	for i, rk := range ruleKinds {
		if rk == k {
			return i
		}
	}
	return 0
}

func mapSeverityToSARIF(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return "error"
	case diag.SeverityNote:
		return "note"
	default:
		return "warning"
	}
}

// SARIF is a SARIF log.
type SARIF struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

// Run is one tool run.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver is the tool's main component.
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

// Rule describes one diagnostic kind.
type Rule struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	ShortDescription Description `json:"shortDescription"`
}

// Description is a plain text description.
type Description struct {
	Text string `json:"text"`
}

// Result is one reported diagnostic.
type Result struct {
	RuleID     string                 `json:"ruleId"`
	RuleIndex  int                    `json:"ruleIndex"`
	Level      string                 `json:"level"`
	Message    Message                `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Message is a result message.
type Message struct {
	Text string `json:"text"`
}

// Location is a result location.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation points into a file.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation names a file.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is a span in a file.
type Region struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}
