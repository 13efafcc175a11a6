// Package parsebio parses Parse Biosciences aggregate sample analysis
// summary reports.
package parsebio

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const (
	// The doubled "symmary" spelling is the pipeline's own output name.
	summarySuffix = ".agg_samp_ana_symmary.csv"
	reportType    = "summary"
)

// Module is the Parse Biosciences report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "parsebio",
		Name: "Parse Biosciences",
		Href: "https://www.parsebiosciences.com",
		Info: "Parse Biosciences workflow for single cell sequencing analysis",
	}
}

// Run parses all Parse Biosciences summary files in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: summarySuffix}) {
		metrics, err := parseSummary(f.Text())
		if err != nil {
			r.Logger.Warn("could not parse Parse Biosciences summary", "file", f.Path, "error", err)

			continue
		}

		sample := r.CleanSampleName(strings.TrimSuffix(f.Name, summarySuffix))
		store.Merge(sample, reportType, metrics)
	}

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("parsebio: %w", err)
	}

	data := store.Flatten(reportType)

	if err := r.WriteData("qcfang_parsebio", data); err != nil {
		return fmt.Errorf("parsebio: %w", err)
	}

	cols := mod.columns(r)

	r.AddSection(report.Section{
		Module:   "parsebio",
		Title:    "Parse Biosciences Summary",
		Anchor:   "parse-summary",
		Subtitle: "QC metrics from the Parse Biosciences single cell workflow.",
		Content:  report.NewTable("parsebio_summary", cols, data),
	})

	r.AddGeneralStats(generalStatsColumns(cols), data)
	r.RecordModule("parsebio", "Parse Biosciences", store.Len())

	return nil
}

// parseSummary reads the statistic,value CSV that follows the header row.
// Non-numeric rows are skipped.
func parseSummary(text string) (ingest.Metrics, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	metrics := make(ingest.Metrics, len(records)-1)

	for _, rec := range records[1:] {
		if len(rec) < 2 {
			continue
		}

		v, parseErr := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if parseErr != nil {
			continue
		}

		metrics[strings.TrimSpace(rec[0])] = v
	}

	if len(metrics) == 0 {
		return nil, fmt.Errorf("no numeric rows")
	}

	return metrics, nil
}

const percentScale = 100

func (mod *Module) columns(r *report.Run) []report.Column {
	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }
	toPercent := func(v float64) float64 { return v * percentScale }
	prefix := r.Config.ReadCount.Prefix
	desc := r.Config.ReadCount.Desc

	return []report.Column{
		{
			Key: "number_of_reads", Title: prefix + " Reads", Scale: "GnBu", Modify: toShared,
			Description: "Total reads (" + desc + ")",
		},
		{
			Key: "valid_barcode_fraction", Title: "% Valid BC", Suffix: "%", Scale: "RdYlGn-rev", Modify: toPercent,
			Description: "% reads with valid barcodes",
		},
		{
			Key: "sequencing_saturation", Title: "Saturation", Suffix: "%", Scale: "RdYlGn-rev", Modify: toPercent,
			Description: "Sequencing saturation",
		},
		{
			Key: "bc1_Q30", Title: "BC1 % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in barcode read 1",
		},
		{
			Key: "bc2_Q30", Title: "BC2 % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in barcode read 2",
		},
		{
			Key: "bc3_Q30", Title: "BC3 % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in barcode read 3",
		},
		{
			Key: "cDNA_Q30", Title: "RNA % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in RNA",
		},
		{
			Key: "transcriptome_map_fraction", Title: "% Mapped to Transcriptome", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage reads mapped to transcriptome",
		},
		{
			Key: "number_of_cells", Title: prefix + " # Cells", Scale: "GnBu", Modify: toShared,
			Description: "Estimated number of cells (" + desc + ")",
		},
		{
			Key: "mean_reads_per_cell", Title: prefix + " Mean Reads/Cell", Scale: "GnBu", Modify: toShared,
			Description: "Mean reads in cells mapped to unique genes (" + desc + ")",
		},
	}
}

func generalStatsColumns(cols []report.Column) []report.Column {
	wanted := map[string]bool{
		"mean_reads_per_cell":        true,
		"number_of_cells":            true,
		"sequencing_saturation":      true,
		"transcriptome_map_fraction": true,
	}

	out := make([]report.Column, 0, len(wanted))

	for _, c := range cols {
		if wanted[c.Key] {
			out = append(out, c)
		}
	}

	return out
}
