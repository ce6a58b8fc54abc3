package config

import (
	"strings"
)

// Declaration describes one typed name from the test-params file: an input
// field, a stdin field or an output field.
type Declaration struct {
	Type      string
	Name      string
	IsArray   bool
	IsPointer bool
	IsConst   bool
	// Size is a literal, a macro name or a field reference. Empty when the
	// declaration is not an array.
	Size string
}

// BaseType returns the type without qualifiers and pointer stars, e.g.
// "const char*" -> "char".
func (d Declaration) BaseType() string {
	t := strings.ReplaceAll(d.Type, "*", " ")
	var words []string
	for _, w := range strings.Fields(t) {
		if w == "const" || w == "volatile" {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// ElemType returns the declared type with one trailing pointer level removed.
// It is the element type of a pointer output copied into a fixed buffer.
func (d Declaration) ElemType() string {
	t := strings.TrimSpace(d.Type)
	if i := strings.LastIndex(t, "*"); i >= 0 {
		t = strings.TrimSpace(t[:i] + t[i+1:])
	}
	return t
}

// String renders the declaration as a C field, e.g. "int a[10]".
func (d Declaration) String() string {
	s := d.Type + " " + d.Name
	if d.IsArray {
		s += "[" + d.Size + "]"
	}
	return s
}

// TestedValueKind tells how an output value is obtained.
type TestedValueKind int

const (
	// FunctionCall outputs are captured after every call of a function.
	FunctionCall TestedValueKind = iota
	// Variable outputs are copied from a variable at the end of the kernel.
	Variable
)

func (k TestedValueKind) String() string {
	switch k {
	case FunctionCall:
		return "function"
	case Variable:
		return "variable"
	default:
		return "unknown"
	}
}

// TestedValue identifies the value recorded into an output field.
type TestedValue struct {
	Kind TestedValueKind
	Name string
	// OutputArg <= 0 selects the return value, n > 0 the n-th argument (1-based).
	OutputArg int
}

// IsReturn reports whether the tested value is a function's return value.
func (v TestedValue) IsReturn() bool {
	return v.Kind == FunctionCall && v.OutputArg <= 0
}

// ResultDeclaration is an output field together with the value it records.
type ResultDeclaration struct {
	Declaration
	Tested TestedValue
}

var knownScalarTypes = map[string]bool{
	"char": true, "signed char": true, "unsigned char": true,
	"short": true, "short int": true, "unsigned short": true, "unsigned short int": true,
	"int": true, "signed": true, "signed int": true, "unsigned": true, "unsigned int": true,
	"long": true, "long int": true, "unsigned long": true, "unsigned long int": true,
	"long long": true, "long long int": true, "unsigned long long": true,
	"float": true, "double": true, "long double": true,
	"bool": true, "_Bool": true, "size_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
}

// IsKnownScalar reports whether the base type is a C scalar type the
// generators know how to copy and print.
func IsKnownScalar(baseType string) bool {
	return knownScalarTypes[baseType]
}
