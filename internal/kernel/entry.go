package kernel

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/core"
)

// ErrEntryState is returned when the entry point rewrite steps run out of
// order.
var ErrEntryState = errors.New("entry point rewrite out of order")

// EntryState tracks how far the entry point has been turned into a kernel.
type EntryState int

const (
	Unvisited EntryState = iota
	Renamed
	ParamsRewritten
	BodyPrologueInserted
	BodyEpilogueInserted
	Finalized
)

func (s EntryState) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Renamed:
		return "renamed"
	case ParamsRewritten:
		return "params-rewritten"
	case BodyPrologueInserted:
		return "prologue-inserted"
	case BodyEpilogueInserted:
		return "epilogue-inserted"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

type entryTransform struct {
	fn       *core.Function
	state    EntryState
	argcName string
	argvName string
}

func (e *entryTransform) advance(to EntryState) error {
	if to != e.state+1 {
		return fmt.Errorf("%w: %s -> %s", ErrEntryState, e.state, to)
	}
	e.state = to
	return nil
}

const indent = "  "

// rewriteEntry turns the entry point into the kernel function.
func (w *unitRewrite) rewriteEntry() error {
	if w.entry == nil {
		return nil
	}
	steps := []struct {
		to  EntryState
		run func(def *sitter.Node)
	}{
		{Renamed, w.renameEntry},
		{ParamsRewritten, w.rewriteEntryParams},
		{BodyPrologueInserted, w.insertPrologue},
		{BodyEpilogueInserted, w.insertEpilogue},
		{Finalized, w.commentOutReturns},
	}
	for _, step := range steps {
		if err := w.entry.advance(step.to); err != nil {
			return err
		}
		step.run(w.entry.fn.Def)
	}
	return nil
}

func (w *unitRewrite) renameEntry(def *sitter.Node) {
	if name := core.FunctionNameNode(def); name != nil {
		w.replace(name, w.s.Kernel.KernelName)
	}
	if t := def.ChildByFieldName("type"); t != nil {
		w.replace(t, "void")
	}
	w.insertBefore(def, def.StartByte(), "__kernel ")
}

func (w *unitRewrite) rewriteEntryParams(def *sitter.Node) {
	list := core.ParameterList(def)
	st, v := w.s.Structs, w.s.Variables
	w.replaceSpan(list, list.StartByte()+1, list.EndByte()-1, fmt.Sprintf(
		"__global struct %s* %s, __global struct %s* %s",
		st.Input, v.Inputs, st.Output, v.Outputs))
}

func (w *unitRewrite) insertPrologue(def *sitter.Node) {
	body := def.ChildByFieldName("body")
	st, v := w.s.Structs, w.s.Variables

	lines := []string{
		fmt.Sprintf("int %s = get_global_id(0);", v.Index),
		fmt.Sprintf("struct %s %s = %s[%s];", st.Input, v.Input, v.Inputs, v.Index),
		fmt.Sprintf("__global struct %s *%s = &%s[%s];", st.Output, v.Output, v.Outputs, v.Index),
		fmt.Sprintf("int %s = %s.%s;", w.entry.argcName, v.Input, st.ArgcField),
		fmt.Sprintf("%s->%s = %s.%s;", v.Output, st.TestCaseField, v.Input, st.TestCaseField),
		"",
	}

	for _, g := range w.an.Arena.Globals() {
		if in, ok := w.p.Input(g.Name); ok && in.IsArray {
			lines = append(lines, w.bindInput(in))
			continue
		}
		lines = append(lines, g.LocalDecl())
	}
	for _, in := range w.p.Inputs {
		if in.IsArray && !w.boundInputs[in.Name] && !w.entryDeclares(body, in.Name) {
			lines = append(lines, w.bindInput(in))
		}
	}
	if w.hasCharOutput() {
		lines = append(lines, fmt.Sprintf("int %s = 0;", v.Counter))
	}

	w.insertAfter(body, body.StartByte()+1, "\n"+indentLines(lines))
}

// bindInput declares a pointer named like the array input, bound to the
// input record's field.
func (w *unitRewrite) bindInput(in config.Declaration) string {
	w.boundInputs[in.Name] = true
	return fmt.Sprintf("%s *%s = %s.%s;", in.Type, in.Name, w.s.Variables.Input, in.Name)
}

// entryDeclares reports whether the entry body declares name at its top
// level, in which case the input is not bound over it.
func (w *unitRewrite) entryDeclares(body *sitter.Node, name string) bool {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "declaration" {
			continue
		}
		for _, d := range core.Declarators(child) {
			if id := core.DeclaredName(d); id != nil && w.u.Text(id) == name {
				return true
			}
		}
	}
	return false
}

func (w *unitRewrite) insertEpilogue(def *sitter.Node) {
	body := def.ChildByFieldName("body")
	out := w.s.Variables.Output

	var lines []string
	for _, r := range w.p.Results {
		if r.Tested.Kind == config.FunctionCall && r.Tested.Name == w.s.Calls.CharOutput {
			lines = append(lines, fmt.Sprintf("*(%s->%s + %s) = '\\0';", out, r.Name, w.s.Variables.Counter))
		}
	}
	for _, r := range w.p.Results {
		if r.Tested.Kind != config.Variable {
			continue
		}
		if r.IsArray {
			lines = append(lines, copyLoop(r.Size,
				fmt.Sprintf("%s->%s[i] = %s[i];", out, r.Name, r.Tested.Name))...)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s->%s = %s;", out, r.Name, r.Tested.Name))
	}
	if len(lines) == 0 {
		return
	}
	w.insertBefore(body, body.EndByte()-1, "\n"+indentLines(lines))
}

func (w *unitRewrite) commentOutReturns(def *sitter.Node) {
	core.Walk(def.ChildByFieldName("body"), func(n *sitter.Node) bool {
		if n.Type() == "return_statement" {
			w.commentOut(n)
			// keeps a braceless if or loop body a statement
			w.insertAfter(n, n.EndByte(), ";")
			return false
		}
		return true
	})
}

// copyLoop returns a loop copying size elements with the given statement.
func copyLoop(size, stmt string) []string {
	return []string{
		fmt.Sprintf("for(int i = 0; i < %s; i++) {", size),
		indent + stmt,
		"}",
	}
}

func indentLines(lines []string) string {
	var sb strings.Builder
	for _, l := range lines {
		if l != "" {
			sb.WriteString(indent)
			sb.WriteString(l)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
