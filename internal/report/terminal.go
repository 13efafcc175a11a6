package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteSummary prints the per-module sample counts as a terminal table.
// Modules that found nothing are dimmed rather than hidden so the user can
// see what was searched for.
func (r *Run) WriteSummary(w io.Writer) {
	header := color.New(color.FgHiWhite, color.Bold)
	header.Fprintln(w, "qcfang run summary")

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Module", "Samples"})

	for _, res := range r.results {
		count := humanize.Comma(int64(res.Samples))
		if res.Samples == 0 {
			count = text.FgHiBlack.Sprint("none")
		}

		tw.AppendRow(table.Row{res.Name, count})
	}

	tw.AppendFooter(table.Row{"Total", humanize.Comma(int64(r.TotalSamples()))})
	tw.Render()

	fmt.Fprintln(w)
}
