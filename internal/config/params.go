package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedConfig is returned for test-params lines that cannot be parsed.
var ErrMalformedConfig = errors.New("malformed config")

// Annotations recognised at the start of a test-params line.
const (
	annotInput    = "input:"
	annotStdin    = "stdin:"
	annotOutput   = "output:"
	annotResult   = "result:"
	annotInclude  = "include:"
	annotFunction = "function:"
	annotVariable = "variable:"
	tokenRet      = "RET"
	tokenArg      = "ARG"
)

// Params is the parsed test-params file.
type Params struct {
	// ArgvInputs maps a command-line argument index to an input field name.
	ArgvInputs  map[int]string
	Inputs      []Declaration
	StdinInputs []Declaration
	Results     []ResultDeclaration
	Includes    []string
}

// ParseParamsFile reads and parses the test-params file at path.
func ParseParamsFile(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	p, err := ParseParams(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseParams parses a test-params file. Blank lines and lines starting with
// '#' are skipped; any other line must start with a known annotation.
func ParseParams(r io.Reader) (*Params, error) {
	p := &Params{ArgvInputs: make(map[int]string)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		annot, rest := fields[0], fields[1:]

		var err error
		switch annot {
		case annotInput:
			err = p.parseInput(rest)
		case annotStdin:
			err = p.parseStdin(rest)
		case annotOutput, annotResult:
			err = p.parseResult(rest)
		case annotInclude:
			if len(rest) != 1 {
				err = errors.New("include expects exactly one header")
			} else {
				p.Includes = append(p.Includes, rest[0])
			}
		default:
			err = fmt.Errorf("unknown annotation %q", annot)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v: %q", ErrMalformedConfig, lineNo, err, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return p, nil
}

func (p *Params) parseInput(tokens []string) error {
	declTokens := tokens
	argvIdx := -1
	if n := len(tokens); n >= 3 {
		if idx, err := strconv.Atoi(tokens[n-1]); err == nil {
			argvIdx = idx
			declTokens = tokens[:n-1]
		}
	}

	decl, err := parseDeclaration(declTokens)
	if err != nil {
		return err
	}
	if !decl.IsArray {
		if argvIdx < 0 {
			return fmt.Errorf("input %s needs an argv index", decl.Name)
		}
		if prev, ok := p.ArgvInputs[argvIdx]; ok {
			return fmt.Errorf("argv index %d already bound to %s", argvIdx, prev)
		}
		p.ArgvInputs[argvIdx] = decl.Name
	} else if argvIdx >= 0 {
		return fmt.Errorf("array input %s cannot take an argv index", decl.Name)
	}

	p.Inputs = append(p.Inputs, decl)
	return nil
}

func (p *Params) parseStdin(tokens []string) error {
	decl, err := parseDeclaration(tokens)
	if err != nil {
		return err
	}
	p.StdinInputs = append(p.StdinInputs, decl)
	return nil
}

func (p *Params) parseResult(tokens []string) error {
	split := -1
	for i, tok := range tokens {
		if tok == annotFunction || tok == annotVariable {
			split = i
			break
		}
	}
	if split < 0 {
		return fmt.Errorf("output needs %q or %q", annotFunction, annotVariable)
	}

	decl, err := parseDeclaration(tokens[:split])
	if err != nil {
		return err
	}

	tested, err := parseTestedValue(tokens[split], tokens[split+1:])
	if err != nil {
		return err
	}

	p.Results = append(p.Results, ResultDeclaration{Declaration: decl, Tested: tested})
	return nil
}

func parseTestedValue(annot string, tokens []string) (TestedValue, error) {
	if len(tokens) == 0 {
		return TestedValue{}, fmt.Errorf("%s needs a name", annot)
	}

	if annot == annotVariable {
		if len(tokens) != 1 {
			return TestedValue{}, fmt.Errorf("unexpected tokens after variable %s", tokens[0])
		}
		return TestedValue{Kind: Variable, Name: tokens[0], OutputArg: -1}, nil
	}

	tv := TestedValue{Kind: FunctionCall, Name: tokens[0], OutputArg: -1}
	if len(tokens) < 2 {
		return tv, fmt.Errorf("function %s needs %s or %s", tv.Name, tokenRet, tokenArg)
	}
	switch tokens[1] {
	case tokenRet:
		if len(tokens) != 2 {
			return tv, fmt.Errorf("unexpected tokens after %s", tokenRet)
		}
	case tokenArg:
		if len(tokens) != 3 {
			return tv, fmt.Errorf("%s needs exactly one argument number", tokenArg)
		}
		n, err := strconv.Atoi(tokens[2])
		if err != nil || n < 1 {
			return tv, fmt.Errorf("%s is not a valid argument number", tokens[2])
		}
		tv.OutputArg = n
	default:
		return tv, fmt.Errorf("%s is not a valid result, use %s or %s", tokens[1], tokenRet, tokenArg)
	}
	return tv, nil
}

// parseDeclaration turns "type words... name[size]" into a Declaration.
// Pointer stars written on the name move to the type.
func parseDeclaration(tokens []string) (Declaration, error) {
	var d Declaration
	if len(tokens) < 2 {
		return d, errors.New("declaration needs a type and a name")
	}

	name := tokens[len(tokens)-1]
	typeWords := append([]string(nil), tokens[:len(tokens)-1]...)
	for strings.HasPrefix(name, "*") {
		typeWords = append(typeWords, "*")
		name = name[1:]
	}

	if open := strings.IndexByte(name, '['); open >= 0 {
		if !strings.HasSuffix(name, "]") || strings.Count(name, "[") != 1 {
			return d, fmt.Errorf("array %s must be written as name[size]", name)
		}
		d.Size = name[open+1 : len(name)-1]
		name = name[:open]
		if d.Size == "" || !isSizeToken(d.Size) {
			return d, fmt.Errorf("array %s has an invalid size %q", name, d.Size)
		}
		d.IsArray = true
	}
	if !isIdentifier(name) {
		return d, fmt.Errorf("%q is not a valid name", name)
	}

	d.Name = name
	d.Type = normalizeType(strings.Join(typeWords, " "))
	if d.Type == "" {
		return d, fmt.Errorf("%s has no type", name)
	}
	d.IsPointer = strings.Contains(d.Type, "*")
	for _, w := range strings.Fields(strings.ReplaceAll(d.Type, "*", " ")) {
		if w == "const" {
			d.IsConst = true
		}
	}
	return d, nil
}

// normalizeType collapses whitespace and attaches pointer stars to the
// preceding word: "char  *" -> "char*".
func normalizeType(t string) string {
	t = strings.Join(strings.Fields(t), " ")
	return strings.ReplaceAll(t, " *", "*")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func isSizeToken(s string) bool {
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	return isIdentifier(s)
}

// TestedFunctions returns the set of function names whose calls are recorded.
func (p *Params) TestedFunctions() map[string]bool {
	out := make(map[string]bool)
	for _, r := range p.Results {
		if r.Tested.Kind == FunctionCall {
			out[r.Tested.Name] = true
		}
	}
	return out
}

// Input returns the input field with the given name.
func (p *Params) Input(name string) (Declaration, bool) {
	for _, in := range p.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Declaration{}, false
}

// StdinQueue returns a private copy of the stdin fields in file order.
// Each translation unit consumes its own queue.
func (p *Params) StdinQueue() []Declaration {
	return append([]Declaration(nil), p.StdinInputs...)
}

// HasCharOutput reports whether some output is written char by char through fn.
func (p *Params) HasCharOutput(fn string) bool {
	for _, r := range p.Results {
		if r.Tested.Kind == FunctionCall && r.Tested.Name == fn {
			return true
		}
	}
	return false
}
