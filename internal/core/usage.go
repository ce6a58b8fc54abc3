package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Reason names the rule that put an item into a function's usage.
type Reason string

const (
	ReasonGlobal Reason = "UsesGlobal"
	// ReasonStdinReadPrimitive: the function calls a stdin reader such as fgets or scanf.
	ReasonStdinReadPrimitive Reason = "StdinReadPrimitive"
	// ReasonStdinHandlePassed: the function passes the stdin handle to a call.
	ReasonStdinHandlePassed Reason = "StdinHandlePassed"
	// ReasonCallsTestedFunction: the function calls a function whose result is recorded.
	ReasonCallsTestedFunction Reason = "CallsTestedFunction"
	// ReasonPropagated: a callee needs the item.
	ReasonPropagated Reason = "Propagated"
)

// Usage summarizes what a function needs from outside its own parameters.
type Usage struct {
	// Globals in discovery order, then propagation order.
	Globals []GlobalID
	Input   bool
	Output  bool
	Stdin   bool
	Reasons []Reason

	globalSet map[GlobalID]bool
}

func newUsage() *Usage {
	return &Usage{globalSet: make(map[GlobalID]bool)}
}

// AddGlobal records a global; it reports whether the global was new.
func (u *Usage) AddGlobal(id GlobalID) bool {
	if u.globalSet[id] {
		return false
	}
	u.globalSet[id] = true
	u.Globals = append(u.Globals, id)
	return true
}

// HasGlobal reports whether the function needs global id.
func (u *Usage) HasGlobal(id GlobalID) bool {
	return u != nil && u.globalSet[id]
}

// NeedsInputRecord reports whether the function needs the per-test input
// record, either for input fields or for stdin data.
func (u *Usage) NeedsInputRecord() bool {
	return u != nil && (u.Input || u.Stdin)
}

// IsEmpty reports whether the function needs nothing passed in.
func (u *Usage) IsEmpty() bool {
	return u == nil || (len(u.Globals) == 0 && !u.Input && !u.Output && !u.Stdin)
}

func (u *Usage) addReason(r Reason) {
	for _, have := range u.Reasons {
		if have == r {
			return
		}
	}
	u.Reasons = append(u.Reasons, r)
}

// UsageOptions configures which calls count as stdin reads and outputs.
type UsageOptions struct {
	IsStdinReader   func(name string) bool
	TestedFunctions map[string]bool
}

// Classification is the direct usage of every function plus the global
// references that have to be dereferenced once globals become pointer
// parameters.
type Classification struct {
	Direct map[FuncID]*Usage
	// Derefs holds identifier nodes of scalar globals used outside the
	// entry point, one per source location.
	Derefs []*sitter.Node
	// PointerWrites holds identifier nodes where a pointer global is
	// reassigned outside the entry point.
	PointerWrites []*sitter.Node
}

// Classify computes the direct usage of every defined function except the
// entry point.
func Classify(u *ParsedUnit, a *Arena, opts UsageOptions) *Classification {
	cl := &Classification{Direct: make(map[FuncID]*Usage)}
	seen := make(map[uint32]bool)

	for _, fn := range a.Functions() {
		if fn.IsExternal() || fn.IsEntry {
			continue
		}
		usage := newUsage()

		Walk(fn.Def.ChildByFieldName("body"), func(n *sitter.Node) bool {
			switch n.Type() {
			case "identifier":
				g, ok := a.GlobalByName(u.Text(n))
				if !ok || !IsReference(n) || IsShadowed(u, n, g.Name) {
					return true
				}
				usage.AddGlobal(g.ID)
				usage.addReason(ReasonGlobal)
				if !g.IsArray && !g.IsPointer && !seen[n.StartByte()] {
					seen[n.StartByte()] = true
					cl.Derefs = append(cl.Derefs, n)
				}
				if g.IsPointer && !g.IsArray && IsAssigned(n) {
					cl.PointerWrites = append(cl.PointerWrites, n)
				}
			case "call_expression":
				classifyCall(u, n, usage, opts)
			}
			return true
		})

		if !usage.IsEmpty() {
			cl.Direct[fn.ID] = usage
		}
	}
	return cl
}

func classifyCall(u *ParsedUnit, call *sitter.Node, usage *Usage, opts UsageOptions) {
	name := u.CalleeName(call)
	if name == "" {
		return
	}
	if opts.IsStdinReader != nil && opts.IsStdinReader(name) {
		usage.Stdin = true
		usage.addReason(ReasonStdinReadPrimitive)
	}
	for _, arg := range Arguments(call) {
		if arg.Type() == "identifier" && u.Text(arg) == "stdin" {
			usage.Stdin = true
			usage.Input = true
			usage.addReason(ReasonStdinHandlePassed)
			break
		}
	}
	if opts.TestedFunctions[name] {
		usage.Output = true
		usage.addReason(ReasonCallsTestedFunction)
	}
}

// IsReference reports whether an identifier reads or writes a variable, as
// opposed to naming something in a declaration.
func IsReference(id *sitter.Node) bool {
	p := id.Parent()
	if p == nil {
		return true
	}
	switch p.Type() {
	case "declaration", "parenthesized_declarator", "preproc_def", "preproc_function_def",
		"preproc_params", "preproc_ifdef", "preproc_defined":
		return false
	case "init_declarator", "array_declarator", "pointer_declarator", "function_declarator",
		"parameter_declaration", "attributed_declarator":
		return !SameNode(p.ChildByFieldName("declarator"), id)
	case "enumerator":
		return !SameNode(p.ChildByFieldName("name"), id)
	case "call_expression":
		return !SameNode(p.ChildByFieldName("function"), id)
	}
	return true
}

// IsAssigned reports whether id is the target of an assignment or of an
// increment or decrement.
func IsAssigned(id *sitter.Node) bool {
	n := id
	p := n.Parent()
	for p != nil && p.Type() == "parenthesized_expression" {
		n, p = p, p.Parent()
	}
	if p == nil {
		return false
	}
	switch p.Type() {
	case "assignment_expression":
		return SameNode(p.ChildByFieldName("left"), n)
	case "update_expression":
		return SameNode(p.ChildByFieldName("argument"), n)
	}
	return false
}

// IsShadowed reports whether name, used at id, resolves to a parameter or to
// a block-scoped declaration that precedes the use.
func IsShadowed(u *ParsedUnit, id *sitter.Node, name string) bool {
	pos := id.StartByte()
	for cur := id.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case "compound_statement":
			for i := 0; i < int(cur.NamedChildCount()); i++ {
				child := cur.NamedChild(i)
				if child.StartByte() >= pos {
					break
				}
				if child.Type() == "declaration" && declaresName(u, child, name) {
					return true
				}
			}
		case "for_statement":
			init := cur.ChildByFieldName("initializer")
			if init != nil && init.Type() == "declaration" && init.StartByte() < pos && declaresName(u, init, name) {
				return true
			}
		case "function_definition":
			for _, p := range u.Parameters(ParameterList(cur)) {
				if n := DeclaredName(p); n != nil && u.Text(n) == name {
					return true
				}
			}
			return false
		}
	}
	return false
}

func declaresName(u *ParsedUnit, decl *sitter.Node, name string) bool {
	for _, d := range Declarators(decl) {
		if n := DeclaredName(d); n != nil && u.Text(n) == name {
			return true
		}
	}
	return false
}
