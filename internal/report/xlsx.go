package report

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const generalStatsSheet = "General Stats"

// ErrNoGeneralStats is returned when an export is requested but no module
// produced general statistics.
var ErrNoGeneralStats = errors.New("no general statistics to export")

// WriteXLSX exports the general statistics table as a spreadsheet.
func (r *Run) WriteXLSX(path string) error {
	gs := r.GeneralStats()
	if gs == nil {
		return ErrNoGeneralStats
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(generalStatsSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	f.SetActiveSheet(idx)

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	header := make([]any, 0, len(gs.Columns)+1)
	header = append(header, gs.RowHeader)

	for _, c := range gs.Columns {
		header = append(header, c.Title)
	}

	if err := writeXLSXRow(f, 1, header); err != nil {
		return err
	}

	for i, sample := range gs.SampleNames() {
		row := make([]any, 0, len(gs.Columns)+1)
		row = append(row, sample)

		metrics := gs.Rows[sample]

		for _, c := range gs.Columns {
			cell, ok := c.Cell(metrics)
			if !ok {
				row = append(row, "")

				continue
			}

			row = append(row, cell)
		}

		if err := writeXLSXRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}

	return nil
}

func writeXLSXRow(f *excelize.File, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", rowNum, err)
	}

	if err := f.SetSheetRow(generalStatsSheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", rowNum, err)
	}

	return nil
}
