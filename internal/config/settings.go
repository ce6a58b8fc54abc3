package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default_settings.toml
var embeddedSettings []byte

// ErrInvalidSettings is returned when a settings file leaves a required value
// empty or out of range.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the names and tables used while generating kernel code.
type Settings struct {
	Kernel    KernelSettings    `toml:"kernel"`
	Structs   StructSettings    `toml:"structs"`
	Variables VariableSettings  `toml:"variables"`
	Files     FileSettings      `toml:"files"`
	Calls     CallSettings      `toml:"calls"`
	Headers   map[string]string `toml:"headers"`
}

// KernelSettings names the entry point and its kernel replacement.
type KernelSettings struct {
	EntryPoint       string `toml:"entry_point"`
	KernelName       string `toml:"kernel_name"`
	PointerArraySize int    `toml:"pointer_array_size"`
}

// StructSettings names the generated buffer structs and their fixed fields.
type StructSettings struct {
	Input         string `toml:"input"`
	Output        string `toml:"output"`
	TestCaseField string `toml:"test_case_field"`
	ArgcField     string `toml:"argc_field"`
}

// VariableSettings names the variables introduced into the kernel.
type VariableSettings struct {
	Input   string `toml:"input"`
	Inputs  string `toml:"inputs"`
	Output  string `toml:"output"`
	Outputs string `toml:"outputs"`
	Index   string `toml:"index"`
	Counter string `toml:"counter"`
}

// FileSettings names the generated files.
type FileSettings struct {
	Structs   string `toml:"structs"`
	CPUGen    string `toml:"cpu_gen"`
	Kernel    string `toml:"kernel"`
	Extension string `toml:"extension"`
}

// CallSettings lists library calls that get special treatment.
type CallSettings struct {
	Disallowed         []string `toml:"disallowed"`
	DisallowedPrefixes []string `toml:"disallowed_prefixes"`
	StdinReaders       []string `toml:"stdin_readers"`
	CharOutput         string   `toml:"char_output"`
	NoPropagation      []string `toml:"no_propagation"`
}

// DefaultSettings returns the embedded default settings.
func DefaultSettings() (*Settings, error) {
	var s Settings
	if err := toml.Unmarshal(embeddedSettings, &s); err != nil {
		return nil, fmt.Errorf("failed to parse embedded settings: %w", err)
	}
	return &s, nil
}

// LoadSettings starts from the embedded defaults and overlays the TOML file at
// path, if one is given. Keys missing from the file keep their default value.
func LoadSettings(path string) (*Settings, error) {
	s, err := DefaultSettings()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, s); err != nil {
			return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every name used in generated code is set.
func (s *Settings) Validate() error {
	if s.Kernel.PointerArraySize <= 0 {
		return fmt.Errorf("%w: kernel.pointer_array_size must be positive, got %d", ErrInvalidSettings, s.Kernel.PointerArraySize)
	}
	required := map[string]string{
		"kernel.entry_point":      s.Kernel.EntryPoint,
		"kernel.kernel_name":      s.Kernel.KernelName,
		"structs.input":           s.Structs.Input,
		"structs.output":          s.Structs.Output,
		"structs.test_case_field": s.Structs.TestCaseField,
		"structs.argc_field":      s.Structs.ArgcField,
		"variables.input":         s.Variables.Input,
		"variables.inputs":        s.Variables.Inputs,
		"variables.output":        s.Variables.Output,
		"variables.outputs":       s.Variables.Outputs,
		"variables.index":         s.Variables.Index,
		"variables.counter":       s.Variables.Counter,
		"files.structs":           s.Files.Structs,
		"files.cpu_gen":           s.Files.CPUGen,
		"files.kernel":            s.Files.Kernel,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidSettings, key)
		}
	}
	return nil
}

// IsDisallowed reports whether calls to fn must be commented out in kernels.
func (s *Settings) IsDisallowed(fn string) bool {
	for _, d := range s.Calls.Disallowed {
		if d == fn {
			return true
		}
	}
	for _, p := range s.Calls.DisallowedPrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}

// IsStdinReader reports whether fn reads from standard input.
func (s *Settings) IsStdinReader(fn string) bool {
	return contains(s.Calls.StdinReaders, fn)
}

// SkipsPropagation reports whether calls to fn never receive extra arguments.
func (s *Settings) SkipsPropagation(fn string) bool {
	return contains(s.Calls.NoPropagation, fn)
}

// HeaderFor returns the OpenCL header that provides the library function fn.
func (s *Settings) HeaderFor(fn string) (string, bool) {
	h, ok := s.Headers[fn]
	return h, ok
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
