package kernel

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/core"
)

// commentOutDisallowed wraps host-only calls such as printf and exit in a
// block comment. Nested disallowed calls are covered by the outer comment.
func (w *unitRewrite) commentOutDisallowed() error {
	core.Walk(w.u.Root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		name := w.u.CalleeName(n)
		if name == "" || !w.s.IsDisallowed(name) {
			return true
		}
		w.commentOut(n)
		return false
	})
	return nil
}
