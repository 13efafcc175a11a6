// Package commands implements CLI command handlers for qcfang.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/all"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

// RunOptions holds the run command's flag values. Set fields override the
// corresponding configuration file settings.
type RunOptions struct {
	ConfigPath string
	OutputDir  string
	Modules    []string
	Title      string
	DataFormat string
	XLSXPath   string
	Dark       bool
	NoColor    bool
}

// NewRunCommand creates the "run" command. The verbose and quiet pointers
// refer to the root command's persistent flags.
func NewRunCommand(verbose, quiet *bool) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Scan an analysis directory and build the QC report",
		Long: `Scan a directory tree for the output files of supported
bioinformatics tools, aggregate their metrics and write an HTML report
plus machine-readable data files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return ExecuteRun(dir, opts, *verbose, *quiet, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: .qcfang.yaml in CWD or $HOME)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "directory to write the report into")
	cmd.Flags().StringSliceVarP(&opts.Modules, "modules", "m", nil, "module IDs or globs to run (default: all)")
	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "report title")
	cmd.Flags().StringVar(&opts.DataFormat, "data-format", "", "parsed data file format: yaml or json")
	cmd.Flags().StringVar(&opts.XLSXPath, "xlsx", "", "also export general statistics to this XLSX file")
	cmd.Flags().BoolVar(&opts.Dark, "dark", false, "render the report with the dark theme")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored terminal output")

	return cmd
}

// ExecuteRun scans dir, runs the selected modules and writes the report.
func ExecuteRun(dir string, opts *RunOptions, verbose, quiet bool, out io.Writer) error {
	if opts.NoColor {
		color.NoColor = true
	}

	logger := newLogger(verbose, quiet)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	files, err := discovery.Scan(dir, discovery.Options{
		MaxFileSize: cfg.Discovery.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}

	logger.Info("scanned analysis directory", "dir", dir, "files", files.Len())

	registry, err := all.Registry()
	if err != nil {
		return err
	}

	selected, err := registry.Select(cfg.Modules)
	if err != nil {
		return err
	}

	run := report.NewRun(cfg, files, logger)

	for _, mod := range selected {
		desc := mod.Descriptor()

		runErr := mod.Run(run)
		if runErr == nil {
			continue
		}

		if errors.Is(runErr, ingest.ErrNoSamples) {
			logger.Debug("module found no samples", "module", desc.ID)
			run.RecordModule(desc.ID, desc.Name, 0)

			continue
		}

		return fmt.Errorf("module %s: %w", desc.ID, runErr)
	}

	if run.TotalSamples() == 0 {
		return fmt.Errorf("no supported report files under %s: %w", dir, ingest.ErrNoSamples)
	}

	theme := plotpage.ThemeLight
	if opts.Dark {
		theme = plotpage.ThemeDark
	}

	reportPath, err := run.WriteReport(theme)
	if err != nil {
		return err
	}

	if opts.XLSXPath != "" {
		if err := run.WriteXLSX(opts.XLSXPath); err != nil {
			return err
		}

		logger.Info("wrote XLSX export", "path", opts.XLSXPath)
	}

	if !quiet {
		run.WriteSummary(out)
		fmt.Fprintf(out, "\nReport written to %s\n", reportPath)
	}

	return nil
}

// loadConfig loads the configuration and applies flag overrides. Overrides
// are re-validated since flags can carry invalid values too.
func loadConfig(opts *RunOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if len(opts.Modules) > 0 {
		cfg.Modules = opts.Modules
	}

	if opts.Title != "" {
		cfg.Title = opts.Title
	}

	if opts.DataFormat != "" {
		cfg.DataFormat = opts.DataFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo

	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
