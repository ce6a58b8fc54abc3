package kernel

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// recordOutputs stores tested values into the output record at every call
// of a tested function. A returned value is captured where the call is
// evaluated, so the function runs once. Other values are recorded by
// statements placed after the statement holding the call.
func (w *unitRewrite) recordOutputs() error {
	byFunc := make(map[string][]config.ResultDeclaration)
	for _, r := range w.p.Results {
		if r.Tested.Kind == config.FunctionCall {
			byFunc[r.Tested.Name] = append(byFunc[r.Tested.Name], r)
		}
	}
	if len(byFunc) == 0 {
		return nil
	}

	for _, r := range w.p.Results {
		if r.Tested.Kind == config.FunctionCall && r.Tested.Name == w.s.Calls.CharOutput &&
			strings.ReplaceAll(r.Type, " ", "") != "char*" {
			w.report(diag.UnrecognizedType, diag.SeverityWarning, w.u.Root,
				"output %s is written by %s but is declared %s, not char*", r.Name, r.Tested.Name, r.Type)
		}
	}

	for _, cs := range w.an.Arena.Calls() {
		results := byFunc[cs.CalleeName]
		if len(results) == 0 {
			continue
		}
		stmt := enclosingStatement(cs.Node)
		live := !w.neutralized(cs)
		var after []string
		for _, r := range results {
			switch {
			case cs.CalleeName == w.s.Calls.CharOutput || !r.Tested.IsReturn():
				if live && stmt != nil && stmt.Type() == "return_statement" {
					w.report(diag.UnresolvableReference, diag.SeverityWarning, cs.Node,
						"output %s cannot be recorded: %s is called in a return statement", r.Name, cs.CalleeName)
					continue
				}
				after = append(after, w.recordStatements(cs, r)...)
			case !live:
				after = append(after, fmt.Sprintf("%s->%s = %s;", w.s.Variables.Output, r.Name, w.render(cs.Node)))
			default:
				if v := w.assignedVariable(cs.Node, stmt); v != "" {
					after = append(after, fmt.Sprintf("%s->%s = %s;", w.s.Variables.Output, r.Name, v))
					continue
				}
				w.insertBefore(cs.Node, cs.Node.StartByte(), fmt.Sprintf("(%s->%s = ", w.s.Variables.Output, r.Name))
				w.insertAfter(cs.Node, cs.Node.EndByte(), ")")
			}
		}
		if len(after) > 0 {
			w.placeAfter(cs, stmt, after)
		}
	}
	return nil
}

// neutralized reports whether the call no longer runs in the kernel: it sits
// in a commented-out host call or in a return of the entry point.
func (w *unitRewrite) neutralized(cs *core.CallSite) bool {
	for n := cs.Node; n != nil; n = n.Parent() {
		switch n.Type() {
		case "call_expression":
			if name := w.u.CalleeName(n); name != "" && w.s.IsDisallowed(name) {
				return true
			}
		case "return_statement":
			return w.isEntry(cs.Caller)
		case "function_definition":
			return false
		}
	}
	return false
}

// enclosingStatement returns the expression statement, declaration or
// return statement holding n, or nil when n sits in a condition or a loop
// header.
func enclosingStatement(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "expression_statement", "declaration", "return_statement":
			if f := p.Parent(); f != nil && f.Type() == "for_statement" && !core.SameNode(f.ChildByFieldName("body"), p) {
				return nil
			}
			return p
		case "compound_statement", "if_statement", "while_statement", "do_statement", "for_statement",
			"switch_statement", "case_statement", "function_definition", "translation_unit":
			return nil
		}
	}
	return nil
}

// assignedVariable returns the variable the call's value is stored into when
// the call is the whole initializer or right-hand side of stmt.
func (w *unitRewrite) assignedVariable(call, stmt *sitter.Node) string {
	p := call.Parent()
	if p == nil || stmt == nil {
		return ""
	}
	switch p.Type() {
	case "init_declarator":
		if stmt.Type() == "declaration" && core.SameNode(p.ChildByFieldName("value"), call) {
			if id := core.DeclaredName(p.ChildByFieldName("declarator")); id != nil {
				return w.u.Text(id)
			}
		}
	case "assignment_expression":
		left := p.ChildByFieldName("left")
		op := p.ChildByFieldName("operator")
		if op != nil && w.u.Text(op) == "=" && core.SameNode(p.ChildByFieldName("right"), call) &&
			core.SameNode(p.Parent(), stmt) && left != nil && left.Type() == "identifier" {
			return strings.TrimSpace(w.render(left))
		}
	}
	return ""
}

// placeAfter inserts stmts after stmt. In a block they go on new lines; a
// braceless body is wrapped in braces first.
func (w *unitRewrite) placeAfter(cs *core.CallSite, stmt *sitter.Node, stmts []string) {
	if stmt == nil {
		w.report(diag.UnresolvableReference, diag.SeverityWarning, cs.Node,
			"outputs of %s cannot be recorded: the call is not inside a statement", cs.CalleeName)
		return
	}
	switch stmt.Parent().Type() {
	case "compound_statement", "case_statement", "translation_unit":
		lead := w.lineLead(stmt)
		var sb strings.Builder
		for _, s := range stmts {
			sb.WriteString("\n")
			sb.WriteString(lead)
			sb.WriteString(s)
		}
		w.insertAfter(cs.Node, stmt.EndByte(), sb.String())
	default:
		w.insertBefore(cs.Node, stmt.StartByte(), "{ ")
		w.insertAfter(cs.Node, stmt.EndByte(), " "+strings.Join(stmts, " ")+" }")
	}
}

func (w *unitRewrite) recordStatements(cs *core.CallSite, r config.ResultDeclaration) []string {
	out := w.s.Variables.Output
	args := core.Arguments(cs.Node)

	if cs.CalleeName == w.s.Calls.CharOutput {
		if len(args) == 0 {
			w.report(diag.UnresolvableReference, diag.SeverityWarning, cs.Node,
				"%s call has no character argument", cs.CalleeName)
			return nil
		}
		counter := w.counterRef(cs.Caller)
		return []string{
			fmt.Sprintf("*(%s->%s + %s) = %s;", out, r.Name, counter, w.render(args[0])),
			fmt.Sprintf("(%s)++;", counter),
		}
	}

	if r.Tested.IsReturn() {
		return []string{fmt.Sprintf("%s->%s = %s;", out, r.Name, w.render(cs.Node))}
	}

	n := r.Tested.OutputArg
	if n > len(args) {
		w.report(diag.UnresolvableReference, diag.SeverityWarning, cs.Node,
			"output %s records argument %d but the call has %d", r.Name, n, len(args))
		return nil
	}
	arg := strings.TrimSpace(w.render(args[n-1]))

	switch {
	case r.IsPointer:
		size := strconv.Itoa(w.s.Kernel.PointerArraySize)
		return copyLoop(size, fmt.Sprintf("*(%s->%s + i) = *(%s + i);", out, r.Name, arg))
	case r.IsArray:
		return copyLoop(r.Size, fmt.Sprintf("%s->%s[i] = (%s)[i];", out, r.Name, arg))
	default:
		if strings.HasPrefix(arg, "&") {
			arg = strings.TrimSpace(arg[1:])
		} else {
			arg = "*(" + arg + ")"
		}
		return []string{fmt.Sprintf("%s->%s = %s;", out, r.Name, arg)}
	}
}

// lineLead returns the leading whitespace of the line on which n starts.
func (w *unitRewrite) lineLead(n *sitter.Node) string {
	src := w.u.Source
	start := bytes.LastIndexByte(src[:n.StartByte()], '\n') + 1
	lead := start
	for lead < len(src) && (src[lead] == ' ' || src[lead] == '\t') {
		lead++
	}
	return string(src[start:lead])
}
