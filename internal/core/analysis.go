package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Options configures the analysis of one translation unit.
type Options struct {
	EntryPoint      string
	TestedFunctions map[string]bool
	IsStdinReader   func(name string) bool
}

// Analysis is everything known about one translation unit before it is
// rewritten. It is built once per unit and never shared between units.
type Analysis struct {
	Unit    *ParsedUnit
	Arena   *Arena
	Graph   *CallGraph
	Usage   *Classification
	Closure *Closure
	// GlobalDecls are the file-scope declarations that introduce globals.
	GlobalDecls []*sitter.Node
	Entry       FuncID
}

// Analyze runs function discovery, global collection, call graph
// construction, usage classification and propagation in that order.
func Analyze(u *ParsedUnit, opts Options) *Analysis {
	a := NewArena()
	CollectFunctions(u, a, opts.EntryPoint)
	decls := CollectGlobals(u, a)
	graph := BuildCallGraph(u, a)
	cl := Classify(u, a, UsageOptions{
		IsStdinReader:   opts.IsStdinReader,
		TestedFunctions: opts.TestedFunctions,
	})

	entry := NoFunc
	for _, fn := range a.Functions() {
		if fn.IsEntry {
			entry = fn.ID
			break
		}
	}

	return &Analysis{
		Unit:        u,
		Arena:       a,
		Graph:       graph,
		Usage:       cl,
		Closure:     Propagate(a, graph, cl),
		GlobalDecls: decls,
		Entry:       entry,
	}
}

// EntryFunction returns the entry point, or nil when the unit has none.
func (an *Analysis) EntryFunction() *Function {
	if an.Entry == NoFunc {
		return nil
	}
	return an.Arena.Function(an.Entry)
}

// UsageOf returns the transitive usage of fn.
func (an *Analysis) UsageOf(fn FuncID) *Usage {
	return an.Closure.Of(fn)
}
