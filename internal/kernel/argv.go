package kernel

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// argvConverters are calls whose argv argument is replaced together with the
// call, e.g. atoi(argv[1]) -> input_gen.n.
var argvConverters = map[string]bool{"atoi": true, "atol": true, "atof": true}

// rewriteArgv replaces argv[i] in the entry point with the input field bound
// to index i. When the program takes argv itself as an input array, an
// unresolved index is shifted by one since the program name is not stored.
func (w *unitRewrite) rewriteArgv() error {
	if w.entry == nil {
		return nil
	}
	_, argvInput := w.p.Input("argv")
	input := w.s.Variables.Input

	core.Walk(w.entry.fn.Def.ChildByFieldName("body"), func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			if !argvConverters[w.u.CalleeName(n)] {
				return true
			}
			args := core.Arguments(n)
			if len(args) != 1 || !w.isArgvSubscript(args[0]) {
				return true
			}
			if field, ok := w.argvField(args[0], argvInput); ok {
				w.replace(n, input+"."+field)
			}
			return false
		case "subscript_expression":
			if !w.isArgvSubscript(n) {
				return true
			}
			if field, ok := w.argvField(n, argvInput); ok {
				w.replace(n, input+"."+field)
			}
			return false
		}
		return true
	})
	return nil
}

func (w *unitRewrite) isArgvSubscript(n *sitter.Node) bool {
	if n.Type() != "subscript_expression" {
		return false
	}
	base := n.ChildByFieldName("argument")
	return base != nil && base.Type() == "identifier" && w.u.Text(base) == w.entry.argvName
}

// argvField resolves the input field for argv[i]. Unresolved subscripts are
// either shifted or reported.
func (w *unitRewrite) argvField(sub *sitter.Node, argvInput bool) (string, bool) {
	idx := sub.ChildByFieldName("index")
	if idx == nil {
		return "", false
	}
	i, err := strconv.Atoi(w.u.Text(idx))
	if err == nil {
		if field, ok := w.p.ArgvInputs[i]; ok {
			return field, true
		}
	}

	if argvInput {
		w.replace(idx, w.u.Text(idx)+" - 1")
		return "", false
	}
	if err != nil {
		w.report(diag.UnresolvableReference, diag.SeverityWarning, sub,
			"argv index %q is not an integer literal", w.u.Text(idx))
	} else {
		w.report(diag.UnresolvableReference, diag.SeverityWarning, sub,
			"no input is bound to argv index %d", i)
	}
	return "", false
}
