package kernel

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// rewriteStdin points stdin reads at the configured stdin fields. Read sites
// take fields from the queue in source order.
func (w *unitRewrite) rewriteStdin() error {
	core.Walk(w.u.Root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn, ok := w.functionOf(n)
		if !ok {
			return true
		}
		name := w.u.CalleeName(n)

		if handle := w.stdinArgument(n); handle != nil {
			field, ok := w.nextStdinField(n)
			if ok {
				w.replace(handle, w.inputRef(fn, field.Name))
			}
			return true
		}
		if name == "scanf" {
			field, ok := w.nextStdinField(n)
			if ok {
				args := n.ChildByFieldName("arguments")
				w.insertAfter(n, args.EndByte()-1, ", &"+w.inputRef(fn, field.Name))
			}
		}
		return true
	})
	return nil
}

// stdinArgument returns the stdin identifier passed to call, if any.
func (w *unitRewrite) stdinArgument(call *sitter.Node) *sitter.Node {
	for _, arg := range core.Arguments(call) {
		if arg.Type() == "identifier" && w.u.Text(arg) == "stdin" {
			return arg
		}
	}
	return nil
}

func (w *unitRewrite) nextStdinField(site *sitter.Node) (config.Declaration, bool) {
	if len(w.stdin) == 0 {
		w.report(diag.ExhaustedResource, diag.SeverityWarning, site,
			"more stdin reads than stdin fields; the read is left unconverted")
		return config.Declaration{}, false
	}
	field := w.stdin[0]
	w.stdin = w.stdin[1:]
	return field, true
}
