package harness

import (
	"strings"
	"testing"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/diag"
)

const params = `input: int n 1
input: double rate 2
input: char* word 3
input: int data[8]
stdin: char line[100]
stdin: char ch
output: int sum function: add RET
output: char* text function: fputc ARG 1
output: int values[N] function: fill ARG 2
output: long total variable: acc
output: point_t where variable: pos
include: point.h
`

func newGenerator(t *testing.T) (*Generator, *diag.Collector) {
	t.Helper()
	settings, err := config.DefaultSettings()
	if err != nil {
		t.Fatalf("DefaultSettings() error = %v", err)
	}
	p, err := config.ParseParams(strings.NewReader(params))
	if err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	c := diag.NewCollector(nil)
	return NewGenerator(settings, p, "test.params", c), c
}

func TestStructs(t *testing.T) {
	g, _ := newGenerator(t)
	got := g.Structs()
	want := `#ifndef STRUCTS_H
#define STRUCTS_H

#include "point.h"

typedef struct partecl_input
{
  int test_case_num;
  int argc;
  int n;
  double rate;
  char word[500];
  int data[8];
  char line[100];
  char ch;
} partecl_input;

typedef struct partecl_output
{
  int test_case_num;
  int sum;
  char text[500];
  int values[N];
  long total;
  point_t where;
} partecl_output;

#endif
`
	if got != want {
		t.Errorf("Structs() =\n%s\nwant\n%s", got, want)
	}
}

func TestCPUHeader(t *testing.T) {
	g, _ := newGenerator(t)
	got := g.CPUHeader()
	for _, want := range []string{
		"#include \"structs.h\"",
		"void populate_inputs(struct partecl_input*, int, char**, int, char**);",
		"void compare_results(struct partecl_output*, struct partecl_output*, int);",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("CPUHeader() missing %q:\n%s", want, got)
		}
	}
}

func TestCPUSource(t *testing.T) {
	g, c := newGenerator(t)
	got := g.CPUSource()

	tests := []struct {
		name string
		want string
	}{
		{"header", "#include \"cpu-gen.h\""},
		{"argc", "  input->argc = argc;"},
		{"int from argv", "  if(argc > 1)\n    input->n = atoi(args[1]);"},
		{"double from argv", "  if(argc > 2)\n    input->rate = atof(args[2]);"},
		{"string from argv", "  if(argc > 3)\n    strncpy(input->word, args[3], 500 - 1);"},
		{"array input", "/* array input data is filled by the caller */"},
		{"stdin string", "  if(stdinc > 0)\n    strncpy(input->line, stdins[0], 100 - 1);"},
		{"stdin char", "  if(stdinc > 1)\n    input->ch = stdins[1][0];"},
		{"int result", `printf("TC %d: %d\n", curres.test_case_num, curres.sum);`},
		{"string result", `printf("TC %d: %s\n", curres.test_case_num, curres.text);`},
		{"array result", "for(int k = 0; k < N; k++)\n      printf(\"%d \", curres.values[k]);"},
		{"long result", `printf("TC %d: %ld\n", curres.test_case_num, curres.total);`},
		{"unknown result", `printf("TC %d: %d\n", curres.test_case_num, curres.where);`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(got, tt.want) {
				t.Errorf("CPUSource() missing %q:\n%s", tt.want, got)
			}
		})
	}

	if n := c.Count(diag.UnrecognizedType); n != 1 {
		t.Errorf("UnrecognizedType diagnostics = %d, want 1", n)
	}
}

func TestFilesNames(t *testing.T) {
	g, _ := newGenerator(t)
	var names []string
	for _, f := range g.Files() {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "structs.h,cpu-gen.h,cpu-gen.c" {
		t.Errorf("Files() names = %v", names)
	}
}
