package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

// TopLevel calls visit for every file-scope item of the unit, looking inside
// preprocessor conditionals.
func TopLevel(root *sitter.Node, visit func(n *sitter.Node)) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
			TopLevel(n, visit)
		default:
			visit(n)
		}
	}
}

// Declarators returns the declarator children of a declaration, one per
// declared name.
func Declarators(decl *sitter.Node) []*sitter.Node {
	typeNode := decl.ChildByFieldName("type")
	var out []*sitter.Node
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		n := decl.NamedChild(i)
		if typeNode != nil && SameNode(n, typeNode) {
			continue
		}
		if declaratorTypes[n.Type()] {
			out = append(out, n)
		}
	}
	return out
}

// PrototypeDeclarator returns the function_declarator when declarator
// declares a function (not a function pointer), nil otherwise.
func PrototypeDeclarator(declarator *sitter.Node) *sitter.Node {
	if declarator.Type() == "init_declarator" {
		return nil
	}
	fd := FunctionDeclarator(declarator)
	if fd == nil {
		return nil
	}
	if id := fd.ChildByFieldName("declarator"); id == nil || id.Type() != "identifier" {
		return nil
	}
	return fd
}

// CollectFunctions registers every function definition and prototype of the
// unit in source order and marks the entry point.
func CollectFunctions(u *ParsedUnit, a *Arena, entryPoint string) {
	TopLevel(u.Root, func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition":
			name := u.FunctionName(n)
			if name == "" {
				return
			}
			id := a.AddFunction(name, n)
			if name == entryPoint && SameNode(a.Function(id).Def, n) {
				a.Function(id).IsEntry = true
			}
		case "declaration":
			for _, d := range Declarators(n) {
				if fd := PrototypeDeclarator(d); fd != nil {
					a.AddPrototype(u.Text(fd.ChildByFieldName("declarator")), fd)
				}
			}
		}
	})
}

// CallGraph records who calls whom inside one translation unit.
type CallGraph struct {
	// Callers maps a callee to its distinct callers in first-seen order.
	Callers map[FuncID][]FuncID
	// SiteCaller maps every call site to the function containing it.
	SiteCaller map[CallID]FuncID

	callerSet map[FuncID]map[FuncID]bool
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		Callers:    make(map[FuncID][]FuncID),
		SiteCaller: make(map[CallID]FuncID),
		callerSet:  make(map[FuncID]map[FuncID]bool),
	}
}

func (g *CallGraph) addCaller(callee, caller FuncID) {
	set, ok := g.callerSet[callee]
	if !ok {
		set = make(map[FuncID]bool)
		g.callerSet[callee] = set
	}
	if set[caller] {
		return
	}
	set[caller] = true
	g.Callers[callee] = append(g.Callers[callee], caller)
}

// IsCaller reports whether caller calls callee at least once.
func (g *CallGraph) IsCaller(callee, caller FuncID) bool {
	return g.callerSet[callee][caller]
}

// BuildCallGraph registers every call whose callee is a plain identifier and
// which sits inside a function body. Callees without a definition get an
// external record so library calls have handles too.
func BuildCallGraph(u *ParsedUnit, a *Arena) *CallGraph {
	g := newCallGraph()

	TopLevel(u.Root, func(n *sitter.Node) {
		if n.Type() != "function_definition" {
			return
		}
		fn, ok := a.FunctionByName(u.FunctionName(n))
		if !ok || !SameNode(fn.Def, n) {
			return
		}
		caller := fn.ID

		Walk(n.ChildByFieldName("body"), func(node *sitter.Node) bool {
			if node.Type() != "call_expression" {
				return true
			}
			name := u.CalleeName(node)
			if name == "" {
				return true
			}
			callee := a.AddFunction(name, nil)
			site := a.AddCall(node, name, caller, callee)
			g.SiteCaller[site] = caller
			g.addCaller(callee, caller)
			return true
		})
	})

	return g
}
