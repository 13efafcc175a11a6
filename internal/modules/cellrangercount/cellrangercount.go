// Package cellrangercount parses Cell Ranger count metrics_summary.csv
// reports.
package cellrangercount

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

const (
	summarySuffix = ".metrics_summary.csv"
	reportType    = "count"
)

// summaryRow maps the single data row of a metrics summary. Every value is
// a string on the wire: counts carry thousands separators and percentages a
// trailing % sign.
type summaryRow struct {
	EstimatedCells       string `csv:"Estimated Number of Cells"`
	MeanReadsPerCell     string `csv:"Mean Reads per Cell"`
	MedianGenesPerCell   string `csv:"Median Genes per Cell"`
	NumberOfReads        string `csv:"Number of Reads"`
	ValidBarcodes        string `csv:"Valid Barcodes"`
	SequencingSaturation string `csv:"Sequencing Saturation"`
	Q30Barcode           string `csv:"Q30 Bases in Barcode"`
	Q30RNA               string `csv:"Q30 Bases in RNA Read"`
	MappedGenome         string `csv:"Reads Mapped to Genome"`
	MappedConfGenome     string `csv:"Reads Mapped Confidently to Genome"`
	MappedConfIntergenic string `csv:"Reads Mapped Confidently to Intergenic Regions"`
	MappedConfIntronic   string `csv:"Reads Mapped Confidently to Intronic Regions"`
	MappedConfExonic     string `csv:"Reads Mapped Confidently to Exonic Regions"`
	MappedConfTranscript string `csv:"Reads Mapped Confidently to Transcriptome"`
	MedianUMIPerCell     string `csv:"Median UMI Counts per Cell"`
	TotalGenesDetected   string `csv:"Total Genes Detected"`
}

func (row summaryRow) metrics() ingest.Metrics {
	raw := map[string]string{
		"Estimated Number of Cells":                      row.EstimatedCells,
		"Mean Reads per Cell":                            row.MeanReadsPerCell,
		"Median Genes per Cell":                          row.MedianGenesPerCell,
		"Number of Reads":                                row.NumberOfReads,
		"Valid Barcodes":                                 row.ValidBarcodes,
		"Sequencing Saturation":                          row.SequencingSaturation,
		"Q30 Bases in Barcode":                           row.Q30Barcode,
		"Q30 Bases in RNA Read":                          row.Q30RNA,
		"Reads Mapped to Genome":                         row.MappedGenome,
		"Reads Mapped Confidently to Genome":             row.MappedConfGenome,
		"Reads Mapped Confidently to Intergenic Regions": row.MappedConfIntergenic,
		"Reads Mapped Confidently to Intronic Regions":   row.MappedConfIntronic,
		"Reads Mapped Confidently to Exonic Regions":     row.MappedConfExonic,
		"Reads Mapped Confidently to Transcriptome":      row.MappedConfTranscript,
		"Median UMI Counts per Cell":                     row.MedianUMIPerCell,
		"Total Genes Detected":                           row.TotalGenesDetected,
	}

	metrics := make(ingest.Metrics, len(raw))

	for k, s := range raw {
		v, ok := parseNumber(s)
		if !ok {
			continue
		}

		metrics[k] = v
	}

	return metrics
}

// parseNumber strips thousands separators and a trailing percent sign, so
// "1,234" becomes 1234 and "97.4%" becomes 97.4.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")

	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Module is the Cell Ranger count report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "cellranger_count",
		Name: "Cell Ranger Count",
		Href: "https://support.10xgenomics.com",
		Info: "10X Genomics single cell gene quantification",
	}
}

// Run parses all metrics summary files in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: summarySuffix}) {
		var rows []summaryRow

		if err := gocsv.UnmarshalString(f.Text(), &rows); err != nil || len(rows) == 0 {
			r.Logger.Warn("could not parse cellranger count summary", "file", f.Path, "error", err)

			continue
		}

		sample := r.CleanSampleName(strings.TrimSuffix(f.Name, summarySuffix))
		store.Merge(sample, reportType, rows[0].metrics())
	}

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("cellranger_count: %w", err)
	}

	data := store.Flatten(reportType)

	if err := r.WriteData("qcfang_cellranger_count", data); err != nil {
		return fmt.Errorf("cellranger_count: %w", err)
	}

	cols := mod.columns(r)

	r.AddSection(report.Section{
		Module:   "cellranger_count",
		Title:    "Cell Ranger Count Summary",
		Anchor:   "cellranger_count-summary",
		Subtitle: "QC metrics from cellranger single cell gene quantification.",
		Content:  report.NewTable("cellranger_count_summary", cols, data),
	})

	mod.addMappedSection(r, store, data)
	r.AddGeneralStats(generalStatsColumns(cols), data)
	r.RecordModule("cellranger_count", "Cell Ranger Count", store.Len())

	return nil
}

// addMappedSection plots the confidently-mapped read distribution across
// exonic, intronic and intergenic regions.
func (mod *Module) addMappedSection(r *report.Run, store *ingest.Store, data map[string]ingest.Metrics) {
	samples := store.Samples()

	regions := []struct {
		key  string
		name string
	}{
		{"Reads Mapped Confidently to Exonic Regions", "Exonic"},
		{"Reads Mapped Confidently to Intronic Regions", "Intronic"},
		{"Reads Mapped Confidently to Intergenic Regions", "Intergenic"},
	}

	bars := make([]plotpage.BarSeries, 0, len(regions))

	for _, region := range regions {
		values := make([]plotpage.SeriesData, len(samples))
		for i, sn := range samples {
			values[i] = data[sn][region.key]
		}

		bars = append(bars, plotpage.BarSeries{Name: region.name, Data: values, Stack: "mapped"})
	}

	r.AddSection(report.Section{
		Module:   "cellranger_count",
		Title:    "Confidently Mapped Reads",
		Anchor:   "cellranger_count-confidently-mapped",
		Subtitle: "Distribution of reads confidently mapped to the genome, in %.",
		Content:  plotpage.BuildBarChart(nil, samples, bars, "% Reads"),
	})
}

func (mod *Module) columns(r *report.Run) []report.Column {
	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }
	prefix := r.Config.ReadCount.Prefix
	desc := r.Config.ReadCount.Desc

	return []report.Column{
		{
			Key: "Number of Reads", Title: prefix + " Reads", Scale: "GnBu", Modify: toShared,
			Description: "Total reads (" + desc + ")",
		},
		{
			Key: "Valid Barcodes", Title: "% Valid BC", Suffix: "%", Scale: "RdYlGn-rev",
			Description: "% reads with valid barcodes",
		},
		{
			Key: "Sequencing Saturation", Title: "Saturation", Suffix: "%", Scale: "RdYlGn-rev",
			Description: "Sequencing saturation",
		},
		{
			Key: "Q30 Bases in Barcode", Title: "BC % > Q30", Suffix: "%", Scale: "GnBu",
			Description: "Percentage of Q30 bases in barcode read",
		},
		{
			Key: "Q30 Bases in RNA Read", Title: "RNA % > Q30", Suffix: "%", Scale: "GnBu",
			Description: "Percentage of Q30 bases in RNA",
		},
		{
			Key: "Reads Mapped to Genome", Title: "% Mapped to Genome", Suffix: "%", Scale: "GnBu",
			Description: "Percentage reads mapped to genome, unique plus multimapping",
		},
		{
			Key: "Reads Mapped Confidently to Genome", Title: "% Mapped Confidently to Genome", Suffix: "%", Scale: "GnBu",
			Description: "Percentage reads mapped confidently to genome",
		},
		{
			Key: "Reads Mapped Confidently to Transcriptome", Title: "% Mapped to Transcriptome", Suffix: "%", Scale: "GnBu",
			Description: "Percentage reads mapped confidently to transcriptome",
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
			Key: "Median UMI Counts per Cell", Title: prefix + " Median UMI/Cell", Scale: "GnBu", Modify: toShared,
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

func generalStatsColumns(cols []report.Column) []report.Column {
	wanted := map[string]bool{
		"Mean Reads per Cell":                       true,
		"Estimated Number of Cells":                 true,
		"Sequencing Saturation":                     true,
		"Reads Mapped Confidently to Genome":        true,
		"Reads Mapped Confidently to Transcriptome": true,
		"Total Genes Detected":                      true,
	}

	out := make([]report.Column, 0, len(wanted))

	for _, c := range cols {
		if wanted[c.Key] {
			out = append(out, c)
		}
	}

	return out
}
