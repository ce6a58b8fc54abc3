// Package driver runs a whole code generation: it loads the configuration,
// rewrites every translation unit, renders the harness files and writes the
// results to the output directory.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wyaneva/partecl-codegen/internal/config"
	"github.com/wyaneva/partecl-codegen/internal/core"
	"github.com/wyaneva/partecl-codegen/internal/diag"
	"github.com/wyaneva/partecl-codegen/internal/harness"
	"github.com/wyaneva/partecl-codegen/internal/kernel"
	"github.com/wyaneva/partecl-codegen/internal/report"
)

var (
	// ErrNoSources is returned when no source file is given.
	ErrNoSources = errors.New("no source files")
	// ErrOutputCollision is returned when two units would be written to the
	// same output file.
	ErrOutputCollision = errors.New("output file collision")
)

// Options configures one run.
type Options struct {
	// ConfigPath is the test-params file.
	ConfigPath string
	// OutputDir receives every generated file. It is created if missing.
	OutputDir string
	// SettingsPath is an optional TOML file overriding the default settings.
	SettingsPath string
	// Jobs bounds the number of units transformed at once. Zero or less
	// means one per CPU.
	Jobs    int
	Sources []string
}

// Driver runs code generation and collects its diagnostics.
type Driver struct {
	log       logrus.FieldLogger
	collector *diag.Collector
}

// New creates a driver logging through log.
func New(log logrus.FieldLogger) *Driver {
	return &Driver{log: log, collector: diag.NewCollector(log)}
}

// Run generates the kernel and harness files. The returned result is never
// nil, so diagnostics can be reported even when err is not. When rendering
// fails no file is written.
func (d *Driver) Run(ctx context.Context, opts Options) (*report.RunResult, error) {
	start := time.Now()
	result := &report.RunResult{Passes: kernel.PassNames()}
	defer func() {
		result.Diagnostics = d.collector.Diagnostics()
		result.Duration = time.Since(start)
	}()

	files, err := d.render(ctx, opts, result)
	if err != nil {
		return result, err
	}

	written, err := writeFiles(opts.OutputDir, files)
	result.FilesWritten = written
	if err != nil {
		return result, err
	}
	d.log.WithField("dir", opts.OutputDir).Infof("Wrote %d files", len(written))
	return result, nil
}

// render produces every output file in memory.
func (d *Driver) render(ctx context.Context, opts Options, result *report.RunResult) ([]harness.File, error) {
	if len(opts.Sources) == 0 {
		return nil, ErrNoSources
	}

	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return nil, err
	}
	params, err := config.ParseParamsFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"inputs":  len(params.Inputs),
		"stdin":   len(params.StdinInputs),
		"results": len(params.Results),
	}).Debug("loaded test params")

	d.log.Info("Generating kernel code...")
	gen := kernel.NewGenerator(settings, params, d.collector)
	units, err := d.generateUnits(ctx, gen, opts)
	result.PassTimings = make(map[string]time.Duration)
	for _, t := range gen.Timings() {
		result.PassTimings[t.Name] = t.Duration
	}
	if err != nil {
		return nil, err
	}
	result.Units = len(units)

	entry, err := d.entryUnit(units)
	if err != nil {
		return nil, err
	}

	var files []harness.File
	seen := make(map[string]string)
	add := func(f harness.File, from string) error {
		if prev, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %s is produced by both %s and %s", ErrOutputCollision, f.Name, prev, from)
		}
		seen[f.Name] = from
		files = append(files, f)
		return nil
	}
	for _, u := range units {
		if err := add(harness.File{Name: u.OutputName, Content: u.Code}, u.FilePath); err != nil {
			return nil, err
		}
	}
	if err := add(harness.File{Name: settings.Files.Kernel, Content: gen.KernelSource(entry)}, entry.FilePath); err != nil {
		return nil, err
	}
	d.log.Info("Generating kernel code... DONE!")

	d.log.Info("Generating structs and CPU harness...")
	for _, f := range harness.NewGenerator(settings, params, opts.ConfigPath, d.collector).Files() {
		if err := add(f, opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	d.log.Info("Generating structs and CPU harness... DONE!")
	return files, nil
}

// generateUnits parses and rewrites every source file. Results keep the
// order of opts.Sources; the first failure cancels the remaining units.
func (d *Driver) generateUnits(ctx context.Context, gen *kernel.Generator, opts Options) ([]*kernel.Result, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	results := make([]*kernel.Result, len(opts.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, src := range opts.Sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := core.ParseFile(gctx, src)
			if err != nil {
				return err
			}
			res, err := gen.Generate(gctx, u)
			if err != nil {
				return err
			}
			results[i] = res
			d.log.WithField("file", src).Debugf("rewrote unit into %s", res.OutputName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// entryUnit returns the single unit that defines the entry point.
func (d *Driver) entryUnit(units []*kernel.Result) (*kernel.Result, error) {
	var entry *kernel.Result
	for _, u := range units {
		if !u.HasEntry {
			continue
		}
		if entry != nil {
			d.collector.Report(diag.Diagnostic{
				Kind:     diag.StructuralViolation,
				Severity: diag.SeverityError,
				File:     u.FilePath,
				Message:  fmt.Sprintf("entry point is also defined in %s", entry.FilePath),
			})
			return nil, fmt.Errorf("%w: defined in both %s and %s", kernel.ErrMalformedEntryPoint, entry.FilePath, u.FilePath)
		}
		entry = u
	}
	if entry == nil {
		file := ""
		if len(units) > 0 {
			file = units[0].FilePath
		}
		d.collector.Report(diag.Diagnostic{
			Kind:     diag.StructuralViolation,
			Severity: diag.SeverityError,
			File:     file,
			Message:  "no unit defines the entry point",
		})
		return nil, kernel.ErrNoEntryPoint
	}
	return entry, nil
}

// writeFiles writes files under dir and returns the paths written. Every
// file is first written to a staging directory next to dir and only moved
// into place once all of them were written, so a failed write leaves dir
// as it was.
func writeFiles(dir string, files []harness.File) ([]string, error) {
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	stage, err := os.MkdirTemp(parent, ".partecl-gen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	for _, f := range files {
		path := filepath.Join(stage, f.Name)
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filepath.Join(dir, f.Name), err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return nil, fmt.Errorf("failed to write %s: is a directory", path)
		}
	}
	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.Rename(filepath.Join(stage, f.Name), path); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
