package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// ErrUnsupportedLanguage is returned for files that are not C sources.
var ErrUnsupportedLanguage = errors.New("unsupported source language")

// ErrSyntax is returned when the parser cannot build a tree for a unit.
var ErrSyntax = errors.New("syntax error")

// queryCache holds compiled queries keyed by pattern. Queries are immutable
// once built and shared between goroutines.
var (
	queryCache sync.Map
	queryMu    sync.Mutex
)

// getQuery returns the compiled query for pattern, building it on first use.
func getQuery(pattern string) (*sitter.Query, error) {
	if cached, ok := queryCache.Load(pattern); ok {
		return cached.(*sitter.Query), nil
	}

	queryMu.Lock()
	defer queryMu.Unlock()

	if cached, ok := queryCache.Load(pattern); ok {
		return cached.(*sitter.Query), nil
	}

	query, err := sitter.NewQuery([]byte(pattern), c.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	queryCache.Store(pattern, query)
	return query, nil
}

// ParsedUnit is one parsed translation unit.
type ParsedUnit struct {
	FilePath string
	Root     *sitter.Node
	Source   []byte
	Tree     *sitter.Tree
}

// QueryMatch is one match of a tree-sitter query.
type QueryMatch struct {
	Node     *sitter.Node
	Captures map[string]*sitter.Node
}

// IsCSource reports whether filename has a C source extension.
func IsCSource(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".c"
}

// ParseFile reads and parses a C source file.
func ParseFile(ctx context.Context, filePath string) (*ParsedUnit, error) {
	if !IsCSource(filePath) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filePath)
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return ParseSource(ctx, filePath, source)
}

// ParseSource parses C source text. filePath is only used for reporting.
func ParseSource(ctx context.Context, filePath string, source []byte) (*ParsedUnit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("%w: %s: no syntax tree", ErrSyntax, filePath)
	}

	return &ParsedUnit{
		FilePath: filePath,
		Root:     tree.RootNode(),
		Source:   source,
		Tree:     tree,
	}, nil
}

// Query runs a tree-sitter query over the whole unit.
func (u *ParsedUnit) Query(pattern string) ([]QueryMatch, error) {
	return u.QueryIn(u.Root, pattern)
}

// QueryIn runs a tree-sitter query below node.
func (u *ParsedUnit) QueryIn(node *sitter.Node, pattern string) ([]QueryMatch, error) {
	query, err := getQuery(pattern)
	if err != nil {
		return nil, err
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, node)

	var matches []QueryMatch
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		if len(match.Captures) == 0 {
			continue
		}

		qm := QueryMatch{
			Node:     match.Captures[0].Node,
			Captures: make(map[string]*sitter.Node, len(match.Captures)),
		}
		for _, capture := range match.Captures {
			qm.Captures[query.CaptureNameForId(capture.Index)] = capture.Node
		}
		matches = append(matches, qm)
	}
	return matches, nil
}

// Text returns the source text of node.
func (u *ParsedUnit) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(u.Source)) {
		end = uint32(len(u.Source))
	}
	if start >= end {
		return ""
	}
	return string(u.Source[start:end])
}

// Position returns the 1-based line and column of node.
func (u *ParsedUnit) Position(node *sitter.Node) (line, column int) {
	if node == nil {
		return 0, 0
	}
	p := node.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}

// HasErrors reports whether the tree contains syntax errors.
func (u *ParsedUnit) HasErrors() bool {
	return u.Root.HasError()
}

// Walk visits node and its descendants in source order. Returning false from
// visit skips the children of that node.
func Walk(node *sitter.Node, visit func(n *sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), visit)
	}
}

// NodeKey identifies a node by its span and type. Nodes handed out by the
// binding are not guaranteed to be pointer-identical across lookups.
type NodeKey struct {
	Start uint32
	End   uint32
	Type  string
}

// KeyOf returns the key of node.
func KeyOf(node *sitter.Node) NodeKey {
	return NodeKey{Start: node.StartByte(), End: node.EndByte(), Type: node.Type()}
}

// SameNode reports whether a and b denote the same syntax node.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return KeyOf(a) == KeyOf(b)
}

// FunctionName extracts the name of a function definition. It handles
// declarators wrapped in pointers, e.g. "int *f(void)".
func (u *ParsedUnit) FunctionName(funcDef *sitter.Node) string {
	if funcDef == nil || funcDef.Type() != "function_definition" {
		return ""
	}
	fd := FunctionDeclarator(funcDef.ChildByFieldName("declarator"))
	if fd == nil {
		return ""
	}
	id := fd.ChildByFieldName("declarator")
	if id == nil || id.Type() != "identifier" {
		return ""
	}
	return u.Text(id)
}

// FunctionDeclarator finds the function_declarator below a declarator,
// looking through pointer wrappers.
func FunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "attributed_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

// FunctionNameNode returns the identifier naming a function definition.
func FunctionNameNode(funcDef *sitter.Node) *sitter.Node {
	fd := FunctionDeclarator(funcDef.ChildByFieldName("declarator"))
	if fd == nil {
		return nil
	}
	id := fd.ChildByFieldName("declarator")
	if id == nil || id.Type() != "identifier" {
		return nil
	}
	return id
}

// ParameterList returns the parameter_list of a function definition or of a
// function declarator.
func ParameterList(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	fd := node
	if node.Type() == "function_definition" {
		fd = FunctionDeclarator(node.ChildByFieldName("declarator"))
	}
	if fd == nil || fd.Type() != "function_declarator" {
		return nil
	}
	return fd.ChildByFieldName("parameters")
}

// Parameters returns the parameter_declaration nodes of a parameter list.
// A lone "void" parameter is not returned.
func (u *ParsedUnit) Parameters(params *sitter.Node) []*sitter.Node {
	if params == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration":
			if p.ChildByFieldName("declarator") == nil && strings.TrimSpace(u.Text(p)) == "void" {
				continue
			}
			out = append(out, p)
		case "variadic_parameter":
			out = append(out, p)
		}
	}
	return out
}

// IsVoidParameterList reports whether params is exactly "(void)".
func (u *ParsedUnit) IsVoidParameterList(params *sitter.Node) bool {
	if params == nil {
		return false
	}
	var named []*sitter.Node
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if n := params.NamedChild(i); n.Type() != "comment" {
			named = append(named, n)
		}
	}
	return len(named) == 1 && named[0].Type() == "parameter_declaration" &&
		named[0].ChildByFieldName("declarator") == nil &&
		strings.TrimSpace(u.Text(named[0])) == "void"
}

// DeclaredName returns the identifier declared by a declarator, looking
// through initializers, pointers, arrays and parentheses.
func DeclaredName(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "identifier":
			return node
		case "init_declarator", "pointer_declarator", "array_declarator",
			"function_declarator", "attributed_declarator", "parameter_declaration":
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			node = node.NamedChild(0)
		default:
			return nil
		}
	}
	return nil
}

// CalleeName returns the name of the function called by call when the callee
// is a plain identifier.
func (u *ParsedUnit) CalleeName(call *sitter.Node) string {
	if call == nil || call.Type() != "call_expression" {
		return ""
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return ""
	}
	return u.Text(fn)
}

// Arguments returns the argument expressions of a call.
func Arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if a := args.NamedChild(i); a.Type() != "comment" {
			out = append(out, a)
		}
	}
	return out
}

// EnclosingFunction returns the function_definition containing node.
func EnclosingFunction(node *sitter.Node) *sitter.Node {
	for cur := node; cur != nil; cur = cur.Parent() {
		if cur.Type() == "function_definition" {
			return cur
		}
	}
	return nil
}

// HasAncestor reports whether some proper ancestor of node satisfies pred.
func HasAncestor(node *sitter.Node, pred func(*sitter.Node) bool) bool {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if pred(cur) {
			return true
		}
	}
	return false
}
