package core

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CollectGlobals registers every file-scope variable of the unit and returns
// the declarations that introduced them, one entry per declaration.
// extern declarations, prototypes and function pointers are skipped.
func CollectGlobals(u *ParsedUnit, a *Arena) []*sitter.Node {
	var decls []*sitter.Node

	TopLevel(u.Root, func(n *sitter.Node) {
		if n.Type() != "declaration" {
			return
		}

		var (
			typeParts []string
			isStatic  bool
			isConst   bool
		)
		typeNode := n.ChildByFieldName("type")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch {
			case child.Type() == "storage_class_specifier":
				switch u.Text(child) {
				case "extern":
					return
				case "static":
					isStatic = true
				}
			case child.Type() == "type_qualifier":
				q := u.Text(child)
				if q == "const" {
					isConst = true
				}
				typeParts = append(typeParts, q)
			case typeNode != nil && SameNode(child, typeNode):
				typeParts = append(typeParts, u.Text(child))
			}
		}
		typeText := strings.Join(typeParts, " ")

		found := false
		for _, d := range Declarators(n) {
			if PrototypeDeclarator(d) != nil {
				continue
			}
			g, ok := globalFromDeclarator(u, d)
			if !ok {
				continue
			}
			g.TypeText = typeText
			g.IsStatic = isStatic
			g.IsConst = isConst
			g.Decl = n
			a.AddGlobal(g)
			found = true
		}
		if found {
			decls = append(decls, n)
		}
	})

	return decls
}

// globalFromDeclarator describes one declarator. Function pointers are
// rejected since they cannot be passed with a rewritten declarator.
func globalFromDeclarator(u *ParsedUnit, d *sitter.Node) (GlobalVar, bool) {
	var g GlobalVar

	declarator := d
	if d.Type() == "init_declarator" {
		declarator = d.ChildByFieldName("declarator")
		if v := d.ChildByFieldName("value"); v != nil {
			g.HasInitializer = true
			g.InitText = u.Text(v)
		}
	}
	if declarator == nil {
		return g, false
	}

	// Walk from the outermost wrapper to the name, remembering the last
	// wrapper seen before it.
	var (
		innermost string
		dims      []string
	)
	for node := declarator; node != nil; {
		switch node.Type() {
		case "identifier":
			g.Name = u.Text(node)
			node = nil
		case "array_declarator":
			innermost = "array"
			dims = append([]string{u.Text(node.ChildByFieldName("size"))}, dims...)
			node = node.ChildByFieldName("declarator")
		case "pointer_declarator":
			innermost = "pointer"
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			node = node.NamedChild(0)
		case "attributed_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return g, false
		}
	}
	if g.Name == "" {
		return g, false
	}

	g.Declarator = declarator
	g.DeclaratorText = u.Text(declarator)
	g.IsArray = innermost == "array"
	g.IsPointer = innermost == "pointer"
	if g.IsArray {
		g.Dims = dims
	}
	return g, true
}

// ParamDeclarator returns the declarator text used when the global is passed
// as a parameter: arrays decay to a pointer to their innermost element,
// e.g. "a[10][20]" -> "(*a)[20]" and "a[10]" -> "*a".
func (g *GlobalVar) ParamDeclarator() string {
	switch {
	case g.IsArray:
		inner := g.Declarator
		for {
			next := inner.ChildByFieldName("declarator")
			for next != nil && next.Type() == "parenthesized_declarator" {
				next = next.NamedChild(0)
			}
			if next == nil || next.Type() != "array_declarator" {
				break
			}
			inner = next
		}
		base := g.Declarator.StartByte()
		prefix := g.DeclaratorText[:inner.StartByte()-base]
		suffix := g.DeclaratorText[inner.EndByte()-base:]
		if suffix == "" {
			return prefix + "*" + g.Name
		}
		return prefix + "(*" + g.Name + ")" + suffix
	case g.IsPointer:
		return g.DeclaratorText
	default:
		return "*" + g.DeclaratorText
	}
}

// ParamText returns the full parameter declaration for the global.
func (g *GlobalVar) ParamText() string {
	if g.IsArray {
		return "private " + g.TypeText + " " + g.ParamDeclarator()
	}
	return g.TypeText + " " + g.ParamDeclarator()
}

// LocalDecl returns the global redeclared as a local variable of the
// kernel, with its initializer.
func (g *GlobalVar) LocalDecl() string {
	s := g.TypeText + " " + g.DeclaratorText
	if g.IsArray {
		s = "private " + s
	}
	if g.HasInitializer {
		s += " = " + g.InitText
	}
	return s + ";"
}
