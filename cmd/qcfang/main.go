// Package main provides the entry point for the qcfang CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/qcfang/cmd/qcfang/commands"
	"github.com/Sumatoshi-tech/qcfang/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qcfang",
		Short: "qcfang - aggregate bioinformatics QC reports into a single report",
		Long: `qcfang scans an analysis directory for the output of supported
bioinformatics tools and aggregates their quality-control metrics into a
single HTML report.

Commands:
  run       Scan a directory and build the report
  modules   List the supported report modules`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewRunCommand(&verbose, &quiet))
	rootCmd.AddCommand(commands.NewModulesCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "qcfang %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
