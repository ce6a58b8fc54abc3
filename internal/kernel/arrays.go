package kernel

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/core"
)

const constantNamesQuery = `
[
  (preproc_def name: (identifier) @name)
  (preproc_function_def name: (identifier) @name)
  (enumerator name: (identifier) @name)
]`

// clampArrays gives local arrays with a run-time size the fixed capacity
// from the settings, since kernels cannot allocate variable-length arrays.
func (w *unitRewrite) clampArrays() error {
	constants, err := w.constantNames()
	if err != nil {
		return err
	}
	size := strconv.Itoa(w.s.Kernel.PointerArraySize)

	for _, fn := range w.an.Arena.Functions() {
		if fn.IsExternal() {
			continue
		}
		core.Walk(fn.Def.ChildByFieldName("body"), func(n *sitter.Node) bool {
			if n.Type() != "declaration" {
				return true
			}
			for _, d := range core.Declarators(n) {
				core.Walk(d, func(c *sitter.Node) bool {
					switch c.Type() {
					case "array_declarator":
						if s := c.ChildByFieldName("size"); s != nil && !isConstantExpr(w.u, s, constants) {
							w.replace(s, size)
						}
					case "initializer_list", "compound_literal_expression":
						return false
					}
					return true
				})
			}
			return false
		})
	}
	return nil
}

// constantNames returns the macro and enumerator names of the unit.
func (w *unitRewrite) constantNames() (map[string]bool, error) {
	matches, err := w.u.Query(constantNamesQuery)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, m := range matches {
		for _, n := range m.Captures {
			names[w.u.Text(n)] = true
		}
	}
	return names, nil
}

// isConstantExpr reports whether every identifier in expr names a macro or
// an enumerator. sizeof operands are always constant.
func isConstantExpr(u *core.ParsedUnit, expr *sitter.Node, constants map[string]bool) bool {
	constant := true
	core.Walk(expr, func(n *sitter.Node) bool {
		switch n.Type() {
		case "sizeof_expression", "alignof_expression":
			return false
		case "identifier":
			if !constants[u.Text(n)] {
				constant = false
			}
		}
		return constant
	})
	return constant
}
