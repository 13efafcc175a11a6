// Package starsolo parses STARsolo single cell gene quantification
// Summary.csv reports.
package starsolo

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
	summarySuffix = "_Summary.csv"
	reportType    = "summary"
)

// Module is the STARsolo report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "starsolo",
		Name: "STARsolo",
		Href: "https://github.com/alexdobin/STAR",
		Info: "STAR solo single cell gene quantification",
	}
}

// Run parses all STARsolo summary files in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: summarySuffix}) {
		metrics, err := parseSummary(f.Text())
		if err != nil {
			r.Logger.Warn("could not parse STARsolo summary", "file", f.Path, "error", err)

			continue
		}

		sample := r.CleanSampleName(strings.TrimSuffix(f.Name, summarySuffix))
		store.Merge(sample, reportType, metrics)
	}

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("starsolo: %w", err)
	}

	data := store.Flatten(reportType)

	if err := r.WriteData("qcfang_starsolo", data); err != nil {
		return fmt.Errorf("starsolo: %w", err)
	}

	cols := mod.columns(r)

	r.AddSection(report.Section{
		Module: "starsolo",
		Title:  "STARsolo Summary",
		Anchor: "starsolo-summary",
		Subtitle: "QC metrics from STAR solo single cell gene quantification. " +
			"Mean Reads/Cell counts reads in cells mapped to unique genes divided by the " +
			"estimated number of cells, which differs from Cell Ranger's total-read version.",
		Content: report.NewTable("starsolo_summary", cols, data),
	})

	r.AddGeneralStats(generalStatsColumns(cols), data)
	r.RecordModule("starsolo", "STARsolo", store.Len())

	return nil
}

// parseSummary reads the headerless two-column metric CSV. Rows with a
// non-numeric value (tool version strings and the like) are skipped.
func parseSummary(text string) (ingest.Metrics, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	metrics := make(ingest.Metrics, len(records))

	for _, rec := range records {
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

// columns covers every summary metric. Fraction metrics are scaled to
// percent here, exactly once; counts use the shared read-count multiplier.
// The "Unique+Multipe" spelling is STARsolo's own.
func (mod *Module) columns(r *report.Run) []report.Column {
	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }
	toPercent := func(v float64) float64 { return v * percentScale }
	prefix := r.Config.ReadCount.Prefix
	desc := r.Config.ReadCount.Desc

	return []report.Column{
		{
			Key: "Number of Reads", Title: prefix + " Reads", Scale: "GnBu", Modify: toShared,
			Description: "Total reads (" + desc + ")",
		},
		{
			Key: "Reads With Valid Barcodes", Title: "% Valid BC", Suffix: "%", Scale: "RdYlGn-rev", Modify: toPercent,
			Description: "% reads with valid barcodes",
		},
		{
			Key: "Sequencing Saturation", Title: "Saturation", Suffix: "%", Scale: "RdYlGn-rev", Modify: toPercent,
			Description: "Sequencing saturation",
		},
		{
			Key: "Q30 Bases in CB+UMI", Title: "BC % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in CB+UMI",
		},
		{
			Key: "Q30 Bases in RNA read", Title: "RNA % > Q30", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage of Q30 bases in RNA",
		},
		{
			Key: "Reads Mapped to Genome: Unique+Multiple", Title: "% Mapped to Genome", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage reads mapped to genome, unique plus multimapping",
		},
		{
			Key: "Reads Mapped to Transcriptome: Unique+Multipe Genes", Title: "% Mapped to Transcriptome", Suffix: "%", Scale: "GnBu", Modify: toPercent,
			Description: "Percentage reads mapped to transcriptome, unique plus multimapping",
		},
		{
			Key: "Estimated Number of Cells", Title: prefix + " # Cells", Scale: "GnBu", Modify: toShared,
			Description: "Estimated number of cells (" + desc + ")",
		},
		{
			Key: "Mean Reads per Cell", Title: prefix + " Mean Reads/Cell", Scale: "GnBu", Modify: toShared,
			Description: "Mean reads in cells mapped to unique genes (" + desc + ")",
		},
		{
			Key: "Median UMI per Cell", Title: prefix + " Median UMI/Cell", Scale: "GnBu", Modify: toShared,
			Description: "Median UMI per cell (" + desc + ")",
		},
		{
			Key: "Median Genes per Cell", Title: prefix + " Median Genes/Cell", Scale: "GnBu", Modify: toShared,
			Description: "Median genes per cell (" + desc + ")",
		},
		{
			Key: "Total Genes Detected", Title: prefix + " Detected Genes", Scale: "GnBu", Modify: toShared,
			Description: "Total genes detected (" + desc + ")",
		},
	}
}

// generalStatsColumns selects the headline subset of the summary columns.
func generalStatsColumns(cols []report.Column) []report.Column {
	wanted := []string{"Mean Reads per Cell", "Estimated Number of Cells", "Sequencing Saturation"}

	out := make([]report.Column, 0, len(wanted))

	for _, key := range wanted {
		for _, c := range cols {
			if c.Key == key {
				out = append(out, c)

				break
			}
		}
	}

	return out
}
