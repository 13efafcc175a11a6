// Package cellranger parses 10X Genomics mkfastq qc.json reports produced
// by cellranger, spaceranger, cellranger-atac and longranger.
package cellranger

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const reportType = "mkfastq"

// qcSchema pins the document shape before parsing: a sample_qc object of
// per-sample objects, each with an "all" metrics object.
const qcSchema = `{
	"type": "object",
	"required": ["sample_qc"],
	"properties": {
		"sample_qc": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["all"],
				"properties": {
					"all": {"type": "object"}
				}
			}
		}
	}
}`

var schema = gojsonschema.NewStringLoader(qcSchema)

type qcDocument struct {
	SampleQC map[string]struct {
		All map[string]float64 `json:"all"`
	} `json:"sample_qc"`
}

// ratioMetrics are reported as 0-1 fractions and scaled to percent once,
// here at parse time.
var ratioMetrics = map[string]bool{
	"barcode_exact_match_ratio": true,
	"barcode_q30_base_ratio":    true,
	"read1_q30_base_ratio":      true,
	"read2_q30_base_ratio":      true,
	"bc_on_whitelist":           true,
}

// Module is the 10X mkfastq report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "cellranger",
		Name: "Cell Ranger",
		Href: "https://support.10xgenomics.com/",
		Info: "10X Genomics workflows for single cell sequencing analysis",
	}
}

// Run parses all mkfastq qc.json files in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	for _, f := range r.Files.Find(discovery.Pattern{Exact: "qc.json"}) {
		samples, err := parseQC(f.Content)
		if err != nil {
			r.Logger.Warn("could not parse cellranger qc.json", "file", f.Path, "error", err)

			continue
		}

		for sample, metrics := range samples {
			store.Merge(r.CleanSampleName(sample), reportType, metrics)
		}
	}

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("cellranger: %w", err)
	}

	data := store.Flatten(reportType)

	if err := r.WriteData("qcfang_cellranger", data); err != nil {
		return fmt.Errorf("cellranger: %w", err)
	}

	r.AddSection(report.Section{
		Module:   "cellranger",
		Title:    "10X Genomics mkfastq",
		Anchor:   "cellranger-mkfastq-qc",
		Subtitle: "QC metrics from 10X Genomics mkfastq pipelines (cellranger, spaceranger, cellranger-atac, longranger).",
		Content:  report.NewTable("cellranger_mkfastq", mod.columns(r), data),
	})

	r.RecordModule("cellranger", "Cell Ranger", store.Len())

	return nil
}

// parseQC validates the document against the qc schema and extracts the
// per-sample "all" metric blobs.
func parseQC(body []byte) (map[string]ingest.Metrics, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("unexpected document shape: %v", result.Errors())
	}

	var doc qcDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	out := make(map[string]ingest.Metrics, len(doc.SampleQC))

	for sample, qc := range doc.SampleQC {
		metrics := make(ingest.Metrics, len(qc.All))

		for k, v := range qc.All {
			if ratioMetrics[k] {
				v = math.Round(v*100*100) / 100
			}

			metrics[k] = v
		}

		out[sample] = metrics
	}

	return out, nil
}

func (mod *Module) columns(r *report.Run) []report.Column {
	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }
	prefix := r.Config.ReadCount.Prefix
	desc := r.Config.ReadCount.Desc

	return []report.Column{
		{
			Key: "number_reads", Title: prefix + " Reads", Scale: "GnBu", Modify: toShared,
			Description: "Total reads before filtering (" + desc + ")",
		},
		{
			Key: "gem_count_estimate", Title: prefix + " GEM estimate", Scale: "GnBu", Modify: toShared,
			Description: "GEM count estimate (" + desc + ")",
		},
		{
			Key: "barcode_exact_match_ratio", Title: "Ratio perfect BC", Suffix: "%", Scale: "RdYlGn-rev",
			Description: "Ratio of perfect match for barcodes",
		},
		{
			Key: "barcode_q30_base_ratio", Title: "BC % > Q30", Suffix: "%", Scale: "GnBu",
			Description: "Percentage of barcode reads > Q30",
		},
		{
			Key: "mean_barcode_qscore", Title: "BC qscore", Scale: "GnBu",
			Description: "Mean barcode Q score",
		},
		{
			Key: "read1_q30_base_ratio", Title: "R1 % > Q30", Suffix: "%", Scale: "GnBu",
			Description: "Percentage of R1 reads > Q30",
		},
		{
			Key: "read2_q30_base_ratio", Title: "R2 % > Q30", Suffix: "%", Scale: "GnBu",
			Description: "Percentage of R2 reads > Q30",
		},
	}
}
