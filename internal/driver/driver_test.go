package driver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/diag"
	"github.com/wyaneva/partecl-codegen/internal/kernel"
)

const mainSource = `#include <ctype.h>
#include <stdlib.h>
int acc;

int bump(int x);

int main(int argc, char **argv) {
  int n = atoi(argv[1]);
  if (isdigit('1'))
    acc = bump(n);
  return 0;
}
`

const helperSource = `int acc;

int bump(int x) {
  return x + acc;
}
`

const params = "input: int n 1\nresult: int total variable: acc\n"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesAllFiles(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "gen")
	opts := Options{
		ConfigPath: writeFile(t, src, "params.txt", params),
		OutputDir:  out,
		Jobs:       2,
		Sources: []string{
			writeFile(t, src, "prog.c", mainSource),
			writeFile(t, src, "helper.c", helperSource),
		},
	}

	result, err := New(quietLogger()).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Units != 2 {
		t.Errorf("Units = %d, want 2", result.Units)
	}
	if len(result.Passes) != len(kernel.PassNames()) {
		t.Errorf("Passes = %v", result.Passes)
	}

	for _, name := range []string{"prog.cl", "helper.cl", "main.cl", "structs.h", "cpu-gen.h", "cpu-gen.c"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s was not written: %v", name, err)
		}
	}
	if len(result.FilesWritten) != 6 {
		t.Errorf("FilesWritten = %v", result.FilesWritten)
	}

	kernelFile, err := os.ReadFile(filepath.Join(out, "main.cl"))
	if err != nil {
		t.Fatal(err)
	}
	code := string(kernelFile)
	for _, want := range []string{
		"#include \"structs.h\"\n#include \"cl-stdlib.h\"\n#include \"cl-ctype.h\"\n\n",
		"__kernel void main_kernel(",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("main.cl is missing %q\n%s", want, code)
		}
	}

	helper, err := os.ReadFile(filepath.Join(out, "helper.cl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(helper), "int bump(int x, int *acc) {") {
		t.Errorf("helper.cl was not rewritten:\n%s", helper)
	}
}

func TestRunLeavesOutputUntouchedOnWriteFailure(t *testing.T) {
	src := t.TempDir()
	parent := t.TempDir()
	out := filepath.Join(parent, "gen")
	if err := os.MkdirAll(filepath.Join(out, "structs.h"), 0o755); err != nil {
		t.Fatal(err)
	}
	opts := Options{
		ConfigPath: writeFile(t, src, "params.txt", params),
		OutputDir:  out,
		Sources:    []string{writeFile(t, src, "prog.c", mainSource)},
	}

	result, err := New(quietLogger()).Run(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "structs.h") {
		t.Fatalf("Run() error = %v, want a failure naming structs.h", err)
	}
	if len(result.FilesWritten) != 0 {
		t.Errorf("FilesWritten = %v, want none", result.FilesWritten)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "structs.h" {
		t.Errorf("output directory holds %v, want only the pre-existing structs.h", entries)
	}
	staged, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 1 {
		t.Errorf("staging directory left behind: %v", staged)
	}
}

func TestRunFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
		params  string
		wantErr error
	}{
		{
			name:    "no entry point",
			sources: map[string]string{"helper.c": helperSource},
			params:  params,
			wantErr: kernel.ErrNoEntryPoint,
		},
		{
			name:    "entry point with one parameter",
			sources: map[string]string{"prog.c": "int main(int argc) { return 0; }\n"},
			params:  params,
			wantErr: kernel.ErrMalformedEntryPoint,
		},
		{
			name: "two entry points",
			sources: map[string]string{
				"a.c": "int main(int argc, char **argv) { return 0; }\n",
				"b.c": "int main(int argc, char **argv) { return 1; }\n",
			},
			params:  params,
			wantErr: kernel.ErrMalformedEntryPoint,
		},
		{
			name:    "malformed params",
			sources: map[string]string{"prog.c": mainSource},
			params:  "bogus: int n\n",
			wantErr: config.ErrMalformedConfig,
		},
		{
			name:    "no sources",
			params:  params,
			wantErr: ErrNoSources,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := t.TempDir()
			out := filepath.Join(t.TempDir(), "gen")
			opts := Options{ConfigPath: writeFile(t, src, "params.txt", tt.params), OutputDir: out}
			for name, content := range tt.sources {
				opts.Sources = append(opts.Sources, writeFile(t, src, name, content))
			}

			result, err := New(quietLogger()).Run(context.Background(), opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if result == nil {
				t.Fatal("Run() returned a nil result")
			}
			if len(result.FilesWritten) != 0 {
				t.Errorf("files written on failure: %v", result.FilesWritten)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("output directory exists after a fatal error")
			}
		})
	}
}

func TestRunReportsStructuralViolation(t *testing.T) {
	src := t.TempDir()
	opts := Options{
		ConfigPath: writeFile(t, src, "params.txt", params),
		OutputDir:  filepath.Join(src, "gen"),
		Sources:    []string{writeFile(t, src, "helper.c", helperSource)},
	}
	result, _ := New(quietLogger()).Run(context.Background(), opts)

	found := false
	for _, d := range result.Diagnostics {
		if d.Kind == diag.StructuralViolation && d.Severity == diag.SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("no structural violation reported: %v", result.Diagnostics)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	src := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := Options{
		ConfigPath: writeFile(t, src, "params.txt", params),
		OutputDir:  filepath.Join(src, "gen"),
		Sources:    []string{writeFile(t, src, "prog.c", mainSource)},
	}
	if _, err := New(quietLogger()).Run(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
