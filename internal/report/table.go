package report

import (
	"io"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

// defaultDigits is the decimal precision for table cells.
const defaultDigits = 1

// Column describes how one metric is presented in a table. Modify is the
// single place a raw metric is scaled for display (unit conversion,
// fraction to percent), so values are never double-scaled.
type Column struct {
	Key         string
	Title       string
	Description string
	Suffix      string
	Scale       string // color scale hint, e.g. "GnBu", "RdYlGn-rev"
	Digits      int    // decimal places; 0 means the default, negative means integer
	Modify      func(float64) float64
}

// Cell formats the column's metric for one sample. Missing metrics yield
// ok=false and an empty cell, never a fabricated zero.
func (c Column) Cell(m ingest.Metrics) (string, bool) {
	v, ok := m[c.Key]
	if !ok {
		return "", false
	}

	if c.Modify != nil {
		v = c.Modify(v)
	}

	digits := c.Digits

	switch {
	case digits < 0:
		digits = 0
	case digits == 0:
		digits = defaultDigits
	}

	// Round first: CommafWithDigits truncates trailing digits, and values
	// like 0.942*100 sit just below their decimal representation.
	pow := math.Pow10(digits)
	v = math.Round(v*pow) / pow

	return humanize.CommafWithDigits(v, digits) + c.Suffix, true
}

// Table is a sample-keyed metric table view model.
type Table struct {
	ID        string
	RowHeader string
	Columns   []Column
	Rows      map[string]ingest.Metrics
}

// NewTable creates a table view model over per-sample metrics.
func NewTable(id string, columns []Column, rows map[string]ingest.Metrics) *Table {
	return &Table{
		ID:        id,
		RowHeader: "Sample",
		Columns:   columns,
		Rows:      rows,
	}
}

// SampleNames returns the table's row labels in sorted order.
func (t *Table) SampleNames() []string {
	return sortedKeys(t.Rows)
}

// Render writes the table as HTML.
func (t *Table) Render(w io.Writer) error {
	return t.plot().Render(w)
}

func (t *Table) plot() *plotpage.Table {
	cols := make([]plotpage.TableColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = plotpage.TableColumn{Title: c.Title, Tooltip: c.Description}
	}

	rows := make([]plotpage.TableRow, 0, len(t.Rows))

	for _, sample := range t.SampleNames() {
		cells := make([]string, len(t.Columns))

		for i, c := range t.Columns {
			cells[i], _ = c.Cell(t.Rows[sample])
		}

		rows = append(rows, plotpage.TableRow{Label: sample, Cells: cells})
	}

	return &plotpage.Table{
		ID:        t.ID,
		RowHeader: t.RowHeader,
		Columns:   cols,
		Rows:      rows,
	}
}
