package kernel

import (
	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// rewriteGlobals comments out every file-scope variable declaration and
// turns uses of scalar globals outside the entry point into dereferences of
// the pointer parameter that replaces them. Pointer globals are passed by
// value, so reassigning one outside the entry point is reported.
func (w *unitRewrite) rewriteGlobals() error {
	for _, decl := range w.an.GlobalDecls {
		w.commentOut(decl)
	}
	for _, id := range w.an.Usage.Derefs {
		w.replace(id, "(*"+w.u.Text(id)+")")
	}
	for _, id := range w.an.Usage.PointerWrites {
		name := w.u.Text(id)
		fn := "a helper"
		if def := core.EnclosingFunction(id); def != nil {
			fn = w.u.FunctionName(def)
		}
		w.report(diag.UnresolvableReference, diag.SeverityWarning, id,
			"pointer global %s is reassigned in %s; the change is not seen by its callers", name, fn)
	}
	return nil
}
