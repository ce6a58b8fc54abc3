// Package kernel rewrites a C test harness into an OpenCL kernel: globals and
// test I/O are threaded through parameters, the entry point becomes a
// __kernel function and calls that cannot run on a device are commented out.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
	"github.com/wyaneva/partecl-codegen/internal/rewrite"
)

var (
	// ErrNoEntryPoint is returned when no unit defines the entry point.
	ErrNoEntryPoint = errors.New("no entry point found")
	// ErrMalformedEntryPoint is returned when the entry point does not take
	// exactly two parameters.
	ErrMalformedEntryPoint = errors.New("malformed entry point")
)

// Result is the generated kernel code of one translation unit.
type Result struct {
	FilePath string
	// OutputName is the file name of the rewritten unit, e.g. "prog.cl".
	OutputName string
	Code       string
	HasEntry   bool
	// Headers are the OpenCL library headers needed by the unit, in
	// first-use order.
	Headers []string
}

// Generator turns parsed translation units into kernel code. A Generator is
// safe for concurrent use; every call to Generate works on private state.
type Generator struct {
	settings *config.Settings
	params   *config.Params
	sink     diag.Sink
	timings  passTimings
}

// NewGenerator creates a generator for one test-params file.
func NewGenerator(settings *config.Settings, params *config.Params, sink diag.Sink) *Generator {
	return &Generator{settings: settings, params: params, sink: sink}
}

// Generate rewrites one translation unit.
func (g *Generator) Generate(ctx context.Context, u *core.ParsedUnit) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	an := core.Analyze(u, core.Options{
		EntryPoint:      g.settings.Kernel.EntryPoint,
		TestedFunctions: g.params.TestedFunctions(),
		IsStdinReader:   g.settings.IsStdinReader,
	})
	w := newUnitRewrite(g, an)

	if u.HasErrors() {
		w.report(diag.StructuralViolation, diag.SeverityWarning, u.Root,
			"the parser recovered from syntax errors; output may be incomplete")
	}
	if err := w.checkEntry(); err != nil {
		return nil, err
	}

	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		err := p.run(w)
		g.timings.record(p.name, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("%s: %s pass: %w", u.FilePath, p.name, err)
		}
	}

	base := strings.TrimSuffix(filepath.Base(u.FilePath), filepath.Ext(u.FilePath))
	return &Result{
		FilePath:   u.FilePath,
		OutputName: base + g.settings.Files.Extension,
		Code:       Postprocess(w.buf.Materialize()),
		HasEntry:   an.EntryFunction() != nil,
		Headers:    w.headers,
	}, nil
}

// Timings returns the time spent in each pass so far, in pass order.
func (g *Generator) Timings() []PassTiming {
	return g.timings.snapshot()
}

// KernelSource returns the text of the kernel file built from the unit that
// holds the entry point.
func (g *Generator) KernelSource(r *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#include \"%s\"\n", g.settings.Files.Structs)
	for _, h := range r.Headers {
		fmt.Fprintf(&sb, "#include \"%s\"\n", h)
	}
	sb.WriteString("\n")
	sb.WriteString(r.Code)
	return sb.String()
}

// unitRewrite is the per-unit state shared by the rewrite passes.
type unitRewrite struct {
	s    *config.Settings
	p    *config.Params
	sink diag.Sink

	u   *core.ParsedUnit
	an  *core.Analysis
	buf *rewrite.Buffer

	stdin []config.Declaration
	entry *entryTransform

	// appended parameters per (parameter list, item) and their count per list
	addedParams  map[paramKey]bool
	paramCount   map[core.NodeKey]int
	addedArgs    map[paramKey]bool
	argCount     map[core.NodeKey]int
	boundInputs  map[string]bool
	headers      []string
	headerSet    map[string]bool
}

type paramKey struct {
	list core.NodeKey
	item string
}

func newUnitRewrite(g *Generator, an *core.Analysis) *unitRewrite {
	w := &unitRewrite{
		s:           g.settings,
		p:           g.params,
		sink:        g.sink,
		u:           an.Unit,
		an:          an,
		buf:         rewrite.NewBuffer(an.Unit.Source),
		stdin:       g.params.StdinQueue(),
		addedParams: make(map[paramKey]bool),
		paramCount:  make(map[core.NodeKey]int),
		addedArgs:   make(map[paramKey]bool),
		argCount:    make(map[core.NodeKey]int),
		boundInputs: make(map[string]bool),
		headerSet:   make(map[string]bool),
	}
	if fn := an.EntryFunction(); fn != nil {
		w.entry = &entryTransform{fn: fn}
	}
	return w
}

// checkEntry rejects an entry point without the canonical two parameters.
func (w *unitRewrite) checkEntry() error {
	if w.entry == nil {
		return nil
	}
	def := w.entry.fn.Def
	params := w.u.Parameters(core.ParameterList(def))
	if len(params) != 2 {
		w.report(diag.StructuralViolation, diag.SeverityError, def,
			"%s must take exactly two parameters (argc, argv), found %d", w.entry.fn.Name, len(params))
		return fmt.Errorf("%w: %s: %s takes %d parameters", ErrMalformedEntryPoint, w.u.FilePath, w.entry.fn.Name, len(params))
	}
	w.entry.argcName = w.paramName(params[0], w.s.Structs.ArgcField)
	w.entry.argvName = w.paramName(params[1], "argv")
	return nil
}

func (w *unitRewrite) paramName(p *sitter.Node, fallback string) string {
	if id := core.DeclaredName(p); id != nil {
		return w.u.Text(id)
	}
	return fallback
}

func (w *unitRewrite) isEntry(fn core.FuncID) bool {
	return w.entry != nil && w.entry.fn.ID == fn
}

// functionOf returns the handle of the function containing node.
func (w *unitRewrite) functionOf(node *sitter.Node) (core.FuncID, bool) {
	def := core.EnclosingFunction(node)
	if def == nil {
		return core.NoFunc, false
	}
	fn, ok := w.an.Arena.FunctionByName(w.u.FunctionName(def))
	if !ok || !core.SameNode(fn.Def, def) {
		return core.NoFunc, false
	}
	return fn.ID, true
}

// inputRef names a field of the input record as seen from fn.
func (w *unitRewrite) inputRef(fn core.FuncID, field string) string {
	if w.isEntry(fn) {
		return w.s.Variables.Input + "." + field
	}
	return w.s.Variables.Input + "->" + field
}

// counterRef names the char-output counter as seen from fn.
func (w *unitRewrite) counterRef(fn core.FuncID) string {
	if w.isEntry(fn) {
		return w.s.Variables.Counter
	}
	return "*" + w.s.Variables.Counter
}

// hasCharOutput reports whether some output is written char by char.
func (w *unitRewrite) hasCharOutput() bool {
	return w.p.HasCharOutput(w.s.Calls.CharOutput)
}

func (w *unitRewrite) report(kind diag.Kind, sev diag.Severity, n *sitter.Node, format string, args ...interface{}) {
	if w.sink == nil {
		return
	}
	line, col := w.u.Position(n)
	w.sink.Report(diag.Diagnostic{
		Kind:      kind,
		Severity:  sev,
		File:      w.u.FilePath,
		Line:      line,
		Column:    col,
		Construct: construct(w.u.Text(n)),
		Message:   fmt.Sprintf(format, args...),
	})
}

// construct shortens node text to its first line for diagnostics.
func construct(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " ..."
	}
	if len(text) > 80 {
		text = text[:77] + "..."
	}
	return strings.TrimSpace(text)
}

func (w *unitRewrite) conflict(n *sitter.Node, err error) {
	w.report(diag.EditConflict, diag.SeverityWarning, n, "rewrite dropped: %v", err)
}

func (w *unitRewrite) replace(n *sitter.Node, text string) {
	if err := w.buf.Replace(n.StartByte(), n.EndByte(), text); err != nil {
		w.conflict(n, err)
	}
}

func (w *unitRewrite) replaceSpan(n *sitter.Node, start, end uint32, text string) {
	if err := w.buf.Replace(start, end, text); err != nil {
		w.conflict(n, err)
	}
}

func (w *unitRewrite) insertAfter(n *sitter.Node, pos uint32, text string) {
	if err := w.buf.InsertAfter(pos, text); err != nil {
		w.conflict(n, err)
	}
}

func (w *unitRewrite) insertBefore(n *sitter.Node, pos uint32, text string) {
	if err := w.buf.InsertBefore(pos, text); err != nil {
		w.conflict(n, err)
	}
}

func (w *unitRewrite) commentOut(n *sitter.Node) {
	if err := w.buf.Wrap(n.StartByte(), n.EndByte(), "/*", "*/"); err != nil {
		w.conflict(n, err)
	}
}

// render returns the current text of n with the edits made inside it so far.
func (w *unitRewrite) render(n *sitter.Node) string {
	return w.buf.Render(n.StartByte(), n.EndByte())
}
