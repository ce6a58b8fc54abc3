package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	if s.Kernel.EntryPoint != "main" || s.Kernel.KernelName != "main_kernel" {
		t.Errorf("kernel names = %q/%q", s.Kernel.EntryPoint, s.Kernel.KernelName)
	}
	if s.Kernel.PointerArraySize != 500 {
		t.Errorf("PointerArraySize = %d, want 500", s.Kernel.PointerArraySize)
	}
	if s.Structs.Input != "partecl_input" || s.Structs.Output != "partecl_output" {
		t.Errorf("struct names = %q/%q", s.Structs.Input, s.Structs.Output)
	}
	if h, ok := s.HeaderFor("strlen"); !ok || h != "cl-string.h" {
		t.Errorf("HeaderFor(strlen) = %q, %v", h, ok)
	}
	if _, ok := s.HeaderFor("memcpy"); ok {
		t.Error("HeaderFor(memcpy) should not be mapped")
	}

	for _, fn := range []string{"printf", "fprintf", "exit", "abort", "fputc", "fputs"} {
		if !s.IsDisallowed(fn) {
			t.Errorf("IsDisallowed(%q) = false", fn)
		}
	}
	if s.IsDisallowed("fgets") {
		t.Error("IsDisallowed(fgets) = true")
	}
	if !s.IsStdinReader("scanf") || s.IsStdinReader("getchar") {
		t.Error("IsStdinReader() mismatch")
	}
	if !s.SkipsPropagation("putchar") || s.SkipsPropagation("helper") {
		t.Error("SkipsPropagation() mismatch")
	}
}

func TestLoadSettingsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	data := "[kernel]\npointer_array_size = 64\n\n[headers]\nmemcpy = \"cl-string.h\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Kernel.PointerArraySize != 64 {
		t.Errorf("PointerArraySize = %d, want 64", s.Kernel.PointerArraySize)
	}
	if s.Kernel.KernelName != "main_kernel" {
		t.Errorf("KernelName = %q, default should be kept", s.Kernel.KernelName)
	}
	if h, _ := s.HeaderFor("memcpy"); h != "cl-string.h" {
		t.Errorf("HeaderFor(memcpy) = %q", h)
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte("[kernel]\npointer_array_size = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("LoadSettings() error = %v, want ErrInvalidSettings", err)
	}
}
