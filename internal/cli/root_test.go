package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wyaneva/partecl-codegen/internal/kernel"
	"github.com/wyaneva/partecl-codegen/internal/report"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeInputs(t *testing.T, program string) (dir, params, source string) {
	t.Helper()
	dir = t.TempDir()
	params = filepath.Join(dir, "params.txt")
	source = filepath.Join(dir, "prog.c")
	if err := os.WriteFile(params, []byte("input: int n 1\nresult: int r variable: n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source, []byte(program), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, params, source
}

func TestRootCommandGenerates(t *testing.T) {
	dir, params, source := writeInputs(t, "int main(int argc, char **argv) {\n  int n = argc;\n  return n;\n}\n")
	out := filepath.Join(dir, "gen")
	reportPath := filepath.Join(dir, "report.json")

	_, stderr, err := run(t, "--config", params, "--output", out,
		"--report-format", "json", "--report-file", reportPath, source)
	if err != nil {
		t.Fatalf("Execute() error = %v\nstderr:\n%s", err, stderr)
	}
	for _, name := range []string{"prog.cl", "main.cl", "structs.h", "cpu-gen.c"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s was not written", name)
		}
	}
	if !strings.Contains(stderr, "Generating kernel code... DONE!") {
		t.Errorf("progress not logged:\n%s", stderr)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc report.JSONReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if doc.Summary.Units != 1 || len(doc.Files) != 5 {
		t.Errorf("report summary = %+v, files = %v", doc.Summary, doc.Files)
	}
}

func TestRootCommandFailsWithoutEntryPoint(t *testing.T) {
	dir, params, source := writeInputs(t, "int helper(void) { return 1; }\n")
	stdout, _, err := run(t, "--config", params, "--output", filepath.Join(dir, "gen"), source)
	if !errors.Is(err, kernel.ErrNoEntryPoint) {
		t.Fatalf("Execute() error = %v, want ErrNoEntryPoint", err)
	}
	if !strings.Contains(stdout, "structural-violation") {
		t.Errorf("text report does not name the violation:\n%s", stdout)
	}
}

func TestRootCommandFlags(t *testing.T) {
	_, params, source := writeInputs(t, "int main(int argc, char **argv) { return 0; }\n")
	tests := []struct {
		name    string
		args    []string
		wantOut string
		wantErr string
	}{
		{name: "version", args: []string{"--version"}, wantOut: "partecl-codegen " + report.Version},
		{name: "list formats", args: []string{"--list-formats"}, wantOut: "sarif"},
		{name: "missing config", args: []string{"--output", "x", source}, wantErr: `"config"`},
		{name: "missing sources", args: []string{"--config", params, "--output", "x"}, wantErr: "no source files"},
		{name: "bad format", args: []string{"--config", params, "--output", "x", "--report-format", "xml", source}, wantErr: "unsupported report format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Execute() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(stdout, tt.wantOut) {
				t.Errorf("output = %q, want %q", stdout, tt.wantOut)
			}
		})
	}
}
