package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/qcfang/internal/modules/all"
)

// NewModulesCommand creates the "modules" command, which lists every
// registered report module.
func NewModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the supported report modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listModules(cmd.OutOrStdout())
		},
	}
}

func listModules(out io.Writer) error {
	registry, err := all.Registry()
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Name", "Description"})

	for _, mod := range registry.All() {
		desc := mod.Descriptor()
		tw.AppendRow(table.Row{desc.ID, desc.Name, desc.Info})
	}

	tw.Render()

	return nil
}
