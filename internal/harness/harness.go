// Package harness generates the host-side files that go with a kernel: the
// buffer structs shared by host and device and the CPU helpers that fill the
// input buffer and print the results.
package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

// File is one generated file, named relative to the output directory.
type File struct {
	Name    string
	Content string
}

// Generator renders the harness files for one test-params file.
type Generator struct {
	settings *config.Settings
	params   *config.Params
	// source names the test-params file in diagnostics.
	source string
	sink   diag.Sink
}

// NewGenerator creates a harness generator.
func NewGenerator(settings *config.Settings, params *config.Params, source string, sink diag.Sink) *Generator {
	return &Generator{settings: settings, params: params, source: source, sink: sink}
}

// Files returns structs.h, cpu-gen.h and cpu-gen.c.
func (g *Generator) Files() []File {
	base := g.settings.Files.CPUGen
	return []File{
		{Name: g.settings.Files.Structs, Content: g.Structs()},
		{Name: base + ".h", Content: g.CPUHeader()},
		{Name: base + ".c", Content: g.CPUSource()},
	}
}

// Structs renders the input and output buffer structs.
func (g *Generator) Structs() string {
	st := g.settings.Structs
	var sb strings.Builder

	sb.WriteString("#ifndef STRUCTS_H\n#define STRUCTS_H\n\n")
	for _, inc := range g.params.Includes {
		fmt.Fprintf(&sb, "#include \"%s\"\n", inc)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "typedef struct %s\n{\n", st.Input)
	fmt.Fprintf(&sb, "  int %s;\n", st.TestCaseField)
	fmt.Fprintf(&sb, "  int %s;\n", st.ArgcField)
	for _, in := range g.params.Inputs {
		fmt.Fprintf(&sb, "  %s;\n", g.field(in))
	}
	for _, in := range g.params.StdinInputs {
		fmt.Fprintf(&sb, "  %s;\n", g.field(in))
	}
	fmt.Fprintf(&sb, "} %s;\n\n", st.Input)

	fmt.Fprintf(&sb, "typedef struct %s\n{\n", st.Output)
	fmt.Fprintf(&sb, "  int %s;\n", st.TestCaseField)
	for _, r := range g.params.Results {
		fmt.Fprintf(&sb, "  %s;\n", g.field(r.Declaration))
	}
	fmt.Fprintf(&sb, "} %s;\n\n", st.Output)

	sb.WriteString("#endif\n")
	return sb.String()
}

// field renders a struct member. Pointers become fixed buffers since
// pointers cannot cross the host/device boundary.
func (g *Generator) field(d config.Declaration) string {
	switch {
	case d.IsArray:
		return fmt.Sprintf("%s %s[%s]", d.Type, d.Name, d.Size)
	case d.IsPointer:
		return fmt.Sprintf("%s %s[%d]", d.ElemType(), d.Name, g.settings.Kernel.PointerArraySize)
	default:
		return fmt.Sprintf("%s %s", d.Type, d.Name)
	}
}

// CPUHeader renders the declarations of the host helpers.
func (g *Generator) CPUHeader() string {
	st := g.settings.Structs
	var sb strings.Builder
	sb.WriteString("#ifndef CPU_GEN_H\n#define CPU_GEN_H\n")
	fmt.Fprintf(&sb, "#include \"%s\"\n\n", g.settings.Files.Structs)
	fmt.Fprintf(&sb, "void populate_inputs(struct %s*, int, char**, int, char**);\n\n", st.Input)
	fmt.Fprintf(&sb, "void compare_results(struct %s*, struct %s*, int);\n\n", st.Output, st.Output)
	sb.WriteString("#endif\n")
	return sb.String()
}

// CPUSource renders populate_inputs and compare_results.
func (g *Generator) CPUSource() string {
	var sb strings.Builder
	sb.WriteString("#include <stdlib.h>\n#include <string.h>\n#include <stdio.h>\n")
	fmt.Fprintf(&sb, "#include \"%s.h\"\n\n", g.settings.Files.CPUGen)
	g.writePopulateInputs(&sb)
	sb.WriteString("\n")
	g.writeCompareResults(&sb)
	return sb.String()
}

// writePopulateInputs fills one input record from the command line
// arguments and stdin contents of a test case.
func (g *Generator) writePopulateInputs(sb *strings.Builder) {
	st := g.settings.Structs
	fmt.Fprintf(sb, "void populate_inputs(struct %s *input, int argc, char **args, int stdinc, char **stdins)\n{\n", st.Input)
	fmt.Fprintf(sb, "  input->%s = argc;\n", st.ArgcField)

	for i := 1; i <= maxArgvIndex(g.params.ArgvInputs); i++ {
		name, ok := g.params.ArgvInputs[i]
		if !ok {
			continue
		}
		in, ok := g.params.Input(name)
		if !ok {
			continue
		}
		src := "args[" + strconv.Itoa(i) + "]"
		fmt.Fprintf(sb, "  if(argc > %d)\n    %s\n", i, g.assignFrom(in, src))
	}
	for _, in := range g.params.Inputs {
		if in.IsArray {
			fmt.Fprintf(sb, "  /* array input %s is filled by the caller */\n", in.Name)
		}
	}
	for i, in := range g.params.StdinInputs {
		src := "stdins[" + strconv.Itoa(i) + "]"
		fmt.Fprintf(sb, "  if(stdinc > %d)\n    %s\n", i, g.assignFrom(in, src))
	}
	sb.WriteString("}\n")
}

// assignFrom converts the string src into the input field d.
func (g *Generator) assignFrom(d config.Declaration, src string) string {
	base := d.BaseType()
	dst := "input->" + d.Name
	if isCharType(base) && (d.IsArray || d.IsPointer) {
		size := d.Size
		if !d.IsArray {
			size = strconv.Itoa(g.settings.Kernel.PointerArraySize)
		}
		return fmt.Sprintf("strncpy(%s, %s, %s - 1);", dst, src, size)
	}
	if d.IsArray || d.IsPointer {
		return fmt.Sprintf("/* %s cannot be converted from a string */", d.Name)
	}
	switch {
	case isCharType(base):
		return fmt.Sprintf("%s = %s[0];", dst, src)
	case base == "float" || base == "double" || base == "long double":
		return fmt.Sprintf("%s = atof(%s);", dst, src)
	case strings.Contains(base, "long") || base == "int64_t" || base == "uint64_t" || base == "size_t":
		return fmt.Sprintf("%s = atol(%s);", dst, src)
	case config.IsKnownScalar(base):
		return fmt.Sprintf("%s = atoi(%s);", dst, src)
	default:
		g.unknownType(d)
		return fmt.Sprintf("%s = atoi(%s);", dst, src)
	}
}

// writeCompareResults prints every result of every test case.
func (g *Generator) writeCompareResults(sb *strings.Builder) {
	st := g.settings.Structs
	fmt.Fprintf(sb, "void compare_results(struct %s* results, struct %s* exp_results, int num_test_cases)\n{\n", st.Output, st.Output)
	sb.WriteString("  for(int i = 0; i < num_test_cases; i++)\n  {\n")
	fmt.Fprintf(sb, "    struct %s curres = results[i];\n", st.Output)
	for _, r := range g.params.Results {
		for _, line := range g.printResult(r) {
			sb.WriteString("    ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("  }\n}\n")
}

func (g *Generator) printResult(r config.ResultDeclaration) []string {
	tc := "curres." + g.settings.Structs.TestCaseField
	field := "curres." + r.Name
	base := r.BaseType()

	if isCharType(base) && (r.IsArray || r.IsPointer) {
		return []string{fmt.Sprintf("printf(\"TC %%d: %%s\\n\", %s, %s);", tc, field)}
	}

	verb, ok := printVerbs[base]
	if !ok {
		g.unknownType(r.Declaration)
		verb = "%d"
	}
	if !r.IsArray && !r.IsPointer {
		return []string{fmt.Sprintf("printf(\"TC %%d: %s\\n\", %s, %s);", verb, tc, field)}
	}

	size := r.Size
	if !r.IsArray {
		size = strconv.Itoa(g.settings.Kernel.PointerArraySize)
	}
	return []string{
		fmt.Sprintf("printf(\"TC %%d: \", %s);", tc),
		fmt.Sprintf("for(int k = 0; k < %s; k++)", size),
		fmt.Sprintf("  printf(\"%s \", %s[k]);", verb, field),
		"printf(\"\\n\");",
	}
}

func (g *Generator) unknownType(d config.Declaration) {
	if g.sink == nil {
		return
	}
	g.sink.Report(diag.Diagnostic{
		Kind:      diag.UnrecognizedType,
		Severity:  diag.SeverityWarning,
		File:      g.source,
		Construct: d.String(),
		Message:   fmt.Sprintf("type %q of %s is not a known scalar type; treated as int", d.Type, d.Name),
	})
}

var printVerbs = map[string]string{
	"char": "%c", "signed char": "%d", "unsigned char": "%u",
	"short": "%d", "short int": "%d", "unsigned short": "%u", "unsigned short int": "%u",
	"int": "%d", "signed": "%d", "signed int": "%d", "unsigned": "%u", "unsigned int": "%u",
	"long": "%ld", "long int": "%ld", "unsigned long": "%lu", "unsigned long int": "%lu",
	"long long": "%lld", "long long int": "%lld", "unsigned long long": "%llu",
	"float": "%f", "double": "%f", "long double": "%Lf",
	"bool": "%d", "_Bool": "%d", "size_t": "%zu",
	"int8_t": "%d", "int16_t": "%d", "int32_t": "%d", "int64_t": "%lld",
	"uint8_t": "%u", "uint16_t": "%u", "uint32_t": "%u", "uint64_t": "%llu",
}

func isCharType(base string) bool {
	return base == "char" || base == "signed char" || base == "unsigned char"
}

func maxArgvIndex(m map[int]string) int {
	max := 0
	for i := range m {
		if i > max {
			max = i
		}
	}
	return max
}
