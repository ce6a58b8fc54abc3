package kernel

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wyaneva/partecl-codegen/internal/core"
)

// collectHeaders records the device headers that implement library calls
// used by the unit, in first-use order.
func (w *unitRewrite) collectHeaders() error {
	core.Walk(w.u.Root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		h, ok := w.s.HeaderFor(w.u.CalleeName(n))
		if ok && !w.headerSet[h] {
			w.headerSet[h] = true
			w.headers = append(w.headers, h)
		}
		return true
	})
	return nil
}

// Postprocess comments out system includes and bool typedefs, which the
// device compiler provides or rejects.
func Postprocess(code string) string {
	lines := strings.SplitAfter(code, "\n")
	var sb strings.Builder
	sb.Grow(len(code) + 64)
	for _, line := range lines {
		fields := strings.Fields(line)
		switch {
		case isSystemInclude(fields, line):
			sb.WriteString("//")
		case isBoolTypedef(fields):
			sb.WriteString("//")
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func isSystemInclude(fields []string, line string) bool {
	if len(fields) == 0 || !strings.Contains(line, "<") {
		return false
	}
	if strings.HasPrefix(fields[0], "#include") {
		return true
	}
	return fields[0] == "#" && len(fields) > 1 && strings.HasPrefix(fields[1], "include")
}

func isBoolTypedef(fields []string) bool {
	if len(fields) < 3 || fields[0] != "typedef" {
		return false
	}
	return strings.Contains(fields[2], "bool") || strings.TrimSuffix(fields[len(fields)-1], ";") == "bool"
}
