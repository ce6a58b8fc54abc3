package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wyaneva/partecl-codegen/internal/driver"
	"github.com/wyaneva/partecl-codegen/internal/report"
)

const appName = "partecl-codegen"

// NewRootCmd builds the partecl-codegen command.
func NewRootCmd() *cobra.Command {
	opts := driver.Options{}
	verbose := false
	showVersion := false
	listFormats := false
	timestamp := false
	reportFormat := string(report.FormatText)
	reportFile := ""
	reportDir := ""

	cmd := &cobra.Command{
		Use:   appName + " --config <test-params> --output <dir> [flags] file.c|dir...",
		Short: "Generate OpenCL kernel code and a CPU harness from a C test harness",
		Long: `Rewrites the given C translation units so that every test case of the
program can run as one work item of an OpenCL kernel. Globals and test I/O
are passed explicitly, the entry point becomes a __kernel function, and the
structs and CPU helpers that go with the kernel are generated from the
test-params file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, report.Version)
				return err
			}
			if listFormats {
				for _, f := range report.SupportedFormats() {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), f); err != nil {
						return err
					}
				}
				return nil
			}

			for _, name := range []string{"config", "output"} {
				if !cmd.Flags().Changed(name) {
					return fmt.Errorf("required flag %q not set", name)
				}
			}
			if len(args) == 0 {
				return fmt.Errorf("no source files given")
			}
			format, err := report.ParseFormat(reportFormat)
			if err != nil {
				return err
			}

			log := newLogger(cmd, verbose)
			sources, err := driver.ExpandSources(args)
			if err != nil {
				return err
			}
			opts.Sources = sources
			log.WithFields(logrus.Fields{
				"units": len(sources),
				"jobs":  opts.Jobs,
			}).Debug("starting code generation")

			result, runErr := driver.New(log).Run(cmd.Context(), opts)
			if err := writeReport(cmd, result, reportTarget{format, reportFile, reportDir, timestamp}, verbose); err != nil {
				log.WithError(err).Error("failed to write report")
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "test-params file describing inputs, stdin and results")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "directory for the generated files")
	cmd.Flags().StringVar(&opts.SettingsPath, "settings", "", "TOML file overriding the default generation settings")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "translation units transformed at once (0 = number of CPUs)")
	cmd.Flags().StringVar(&reportFormat, "report-format", reportFormat, "diagnostics report format ("+formatList()+")")
	cmd.Flags().StringVar(&reportFile, "report-file", "", "write the diagnostics report to this file instead of stdout")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "write the diagnostics report into this directory under a generated name")
	cmd.Flags().BoolVar(&timestamp, "timestamp", false, "add a timestamp to the generated report file name")
	cmd.Flags().BoolVar(&listFormats, "list-formats", false, "list supported report formats")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print version")

	_ = cmd.MarkFlagFilename("config")
	_ = cmd.MarkFlagDirname("output")
	_ = cmd.MarkFlagFilename("settings", "toml")

	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newLogger(cmd *cobra.Command, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

type reportTarget struct {
	format    report.Format
	file      string
	dir       string
	timestamp bool
}

// writeReport writes the diagnostics report to a file, or to stdout when
// neither a file nor a directory is given.
func writeReport(cmd *cobra.Command, result *report.RunResult, t reportTarget, verbose bool) error {
	if t.file == "" && t.dir == "" {
		if t.format == report.FormatText {
			var options []report.TextOption
			if verbose {
				options = append(options, report.WithVerbose())
			}
			return report.NewTextWriter(cmd.OutOrStdout(), options...).Write(result)
		}
		return report.NewManager(report.WithFormat(t.format)).WriteTo(cmd.OutOrStdout(), result)
	}

	options := []report.ManagerOption{report.WithFormat(t.format)}
	if t.file != "" {
		options = append(options, report.WithFilename(t.file))
	} else {
		options = append(options, report.WithOutputDir(t.dir))
	}
	if t.timestamp {
		options = append(options, report.WithTimestamp())
	}
	path, err := report.NewManager(options...).Generate(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
	return nil
}

func formatList() string {
	formats := report.SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
