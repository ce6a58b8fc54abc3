package kernel

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/core"
)

// threaded is one parameter or argument appended to a signature or call.
type threaded struct {
	key  string
	text string
}

// rewriteSignatures appends the parameters every function needs to its
// definition and prototypes, then the matching arguments to every call.
func (w *unitRewrite) rewriteSignatures() error {
	for _, fn := range w.an.Arena.Functions() {
		if fn.IsExternal() || fn.IsEntry || w.s.SkipsPropagation(fn.Name) {
			continue
		}
		params := w.paramsFor(w.an.UsageOf(fn.ID))
		if len(params) == 0 {
			continue
		}
		w.appendTo(core.ParameterList(fn.Def), params, w.addedParams, w.paramCount, true)
		for _, proto := range fn.Prototypes {
			w.appendTo(core.ParameterList(proto), params, w.addedParams, w.paramCount, true)
		}
	}

	for _, cs := range w.an.Arena.Calls() {
		callee := w.an.Arena.Function(cs.Callee)
		if callee.IsExternal() || callee.IsEntry || w.s.SkipsPropagation(callee.Name) {
			continue
		}
		args := w.argsFor(w.an.UsageOf(cs.Callee), cs.Caller)
		if len(args) == 0 {
			continue
		}
		cs.AddedArgs = append(cs.AddedArgs, w.appendTo(cs.Node.ChildByFieldName("arguments"), args, w.addedArgs, w.argCount, false)...)
	}
	return nil
}

// paramsFor lists the parameter declarations for a usage: globals in
// propagation order, then the input record, output record and counter.
func (w *unitRewrite) paramsFor(usage *core.Usage) []threaded {
	var out []threaded
	for _, id := range usage.Globals {
		g := w.an.Arena.Global(id)
		out = append(out, threaded{key: globalKey(id), text: g.ParamText()})
	}
	v, st := w.s.Variables, w.s.Structs
	if usage.NeedsInputRecord() {
		out = append(out, threaded{key: "input", text: "struct " + st.Input + " *" + v.Input})
	}
	if usage.Output {
		out = append(out, threaded{key: "output", text: "__global struct " + st.Output + " *" + v.Output})
		if w.hasCharOutput() {
			out = append(out, threaded{key: "counter", text: "int *" + v.Counter})
		}
	}
	return out
}

// argsFor lists the arguments matching paramsFor as written inside caller.
func (w *unitRewrite) argsFor(usage *core.Usage, caller core.FuncID) []threaded {
	fromEntry := w.isEntry(caller)
	callerUsage := w.an.UsageOf(caller)

	var out []threaded
	for _, id := range usage.Globals {
		g := w.an.Arena.Global(id)
		text := g.Name
		if !g.IsArray && !g.IsPointer && (fromEntry || !callerUsage.HasGlobal(id)) {
			text = "&" + g.Name
		}
		out = append(out, threaded{key: globalKey(id), text: text})
	}
	v := w.s.Variables
	if usage.NeedsInputRecord() {
		out = append(out, threaded{key: "input", text: addressIf(fromEntry, v.Input)})
	}
	if usage.Output {
		out = append(out, threaded{key: "output", text: v.Output})
		if w.hasCharOutput() {
			out = append(out, threaded{key: "counter", text: addressIf(fromEntry, v.Counter)})
		}
	}
	return out
}

// appendTo inserts items before the closing parenthesis of list, skipping
// items already appended there. A "(void)" parameter list is replaced.
func (w *unitRewrite) appendTo(list *sitter.Node, items []threaded, added map[paramKey]bool, count map[core.NodeKey]int, isParams bool) []string {
	if list == nil {
		return nil
	}
	listKey := core.KeyOf(list)

	var texts []string
	for _, it := range items {
		k := paramKey{list: listKey, item: it.key}
		if added[k] {
			continue
		}
		added[k] = true
		texts = append(texts, it.text)
	}
	if len(texts) == 0 {
		return nil
	}

	joined := strings.Join(texts, ", ")
	prior := count[listKey]
	count[listKey] += len(texts)

	if isParams && prior == 0 && w.u.IsVoidParameterList(list) {
		w.replaceSpan(list, list.StartByte()+1, list.EndByte()-1, joined)
		return texts
	}
	if prior > 0 || w.hasEntries(list, isParams) {
		joined = ", " + joined
	}
	w.insertAfter(list, list.EndByte()-1, joined)
	return texts
}

func (w *unitRewrite) hasEntries(list *sitter.Node, isParams bool) bool {
	if isParams {
		return len(w.u.Parameters(list)) > 0
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if list.NamedChild(i).Type() != "comment" {
			return true
		}
	}
	return false
}

func globalKey(id core.GlobalID) string {
	return "global:" + strconv.Itoa(int(id))
}

func addressIf(cond bool, name string) string {
	if cond {
		return "&" + name
	}
	return name
}
