// Package bismark parses Bismark bisulfite aligner reports: alignment,
// deduplication and methylation extraction.
package bismark

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

// Report types, in flatten priority order. Deduplication re-reports
// aligned_reads and its count is the trusted one, so dedup folds in after
// alignment; methylation extraction runs last of the three tools.
const (
	typeAlignment   = "alignment"
	typeDedup       = "dedup"
	typeMethExtract = "methextract"
)

var flattenPriority = []string{typeAlignment, typeDedup, typeMethExtract}

// Sample-name sentinels. A matching filename whose content lacks the
// sentinel is not a report we understand.
var (
	alignmentSentinel = regexp.MustCompile(`Bismark report for: (\S+)`)
	dedupSentinel     = regexp.MustCompile(`Total number of alignments analysed in (\S+)`)
)

var alignmentPatterns = ingest.Table{
	{Metric: "total_reads", Re: regexp.MustCompile(`(?m)^Sequence(?:s| pairs) analysed in total:\s+(\d+)$`)},
	{Metric: "aligned_reads", Re: regexp.MustCompile(`(?m)^Number of(?: paired-end)? alignments with a unique best hit:\s+(\d+)$`)},
	{Metric: "no_alignments", Re: regexp.MustCompile(`(?m)^Sequence(?:s| pairs) with no alignments under any condition:\s+(\d+)$`)},
	{Metric: "ambig_reads", Re: regexp.MustCompile(`(?m)^Sequence(?:s| pairs) did not map uniquely:\s+(\d+)$`)},
	{Metric: "discarded_reads", Re: regexp.MustCompile(`(?m)^Sequence(?:s| pairs) which were discarded because genomic sequence could not be extracted:\s+(\d+)$`)},
	{Metric: "aln_total_c", Re: regexp.MustCompile(`(?m)^Total number of C's analysed:\s+(\d+)$`)},
	{Metric: "aln_meth_cpg", Re: regexp.MustCompile(`(?m)^Total methylated C's in CpG context:\s+(\d+)`)},
	{Metric: "aln_meth_chg", Re: regexp.MustCompile(`(?m)^Total methylated C's in CHG context:\s+(\d+)`)},
	{Metric: "aln_meth_chh", Re: regexp.MustCompile(`(?m)^Total methylated C's in CHH context:\s+(\d+)`)},
	{Metric: "aln_unmeth_cpg", Re: regexp.MustCompile(`(?m)^Total unmethylated C's in CpG context:\s+(\d+)`)},
	{Metric: "aln_unmeth_chg", Re: regexp.MustCompile(`(?m)^Total unmethylated C's in CHG context:\s+(\d+)`)},
	{Metric: "aln_unmeth_chh", Re: regexp.MustCompile(`(?m)^Total unmethylated C's in CHH context:\s+(\d+)`)},
	{Metric: "aln_percent_cpg_meth", Re: regexp.MustCompile(`(?m)^C methylated in CpG context:\s+([\d.]+)%`)},
	{Metric: "aln_percent_chg_meth", Re: regexp.MustCompile(`(?m)^C methylated in CHG context:\s+([\d.]+)%`)},
	{Metric: "aln_percent_chh_meth", Re: regexp.MustCompile(`(?m)^C methylated in CHH context:\s+([\d.]+)%`)},
}

// The dedup aligned_reads count deliberately overwrites the alignment one
// via the flatten priority; the alignment value stays in case
// deduplication was not run.
var dedupPatterns = ingest.Table{
	{Metric: "aligned_reads", Re: regexp.MustCompile(`(?m)^Total number of alignments analysed in .+:\s+(\d+)$`)},
	{Metric: "dup_reads", Re: regexp.MustCompile(`(?m)^Total number duplicated alignments removed:\s+(\d+)`)},
	{Metric: "dup_reads_percent", Re: regexp.MustCompile(`(?m)^Total number duplicated alignments removed:\s+\d+\s+\(([\d.]+)%\)`)},
	{Metric: "dedup_reads", Re: regexp.MustCompile(`(?m)^Total count of deduplicated leftover sequences:\s+(\d+)`)},
	{Metric: "dedup_reads_percent", Re: regexp.MustCompile(`(?m)^Total count of deduplicated leftover sequences:\s+\d+\s+\(([\d.]+)% of total\)`)},
}

var methExtractPatterns = ingest.Table{
	{Metric: "me_total_c", Re: regexp.MustCompile(`(?m)^Total number of C's analysed:\s+(\d+)$`)},
	{Metric: "me_meth_cpg", Re: regexp.MustCompile(`(?m)^Total methylated C's in CpG context:\s+(\d+)`)},
	{Metric: "me_meth_chg", Re: regexp.MustCompile(`(?m)^Total methylated C's in CHG context:\s+(\d+)`)},
	{Metric: "me_meth_chh", Re: regexp.MustCompile(`(?m)^Total methylated C's in CHH context:\s+(\d+)`)},
	{Metric: "me_unmeth_cpg", Re: regexp.MustCompile(`(?m)^Total C to T conversions in CpG context:\s+(\d+)`)},
	{Metric: "me_unmeth_chg", Re: regexp.MustCompile(`(?m)^Total C to T conversions in CHG context:\s+(\d+)`)},
	{Metric: "me_unmeth_chh", Re: regexp.MustCompile(`(?m)^Total C to T conversions in CHH context:\s+(\d+)`)},
	{Metric: "me_percent_cpg_meth", Re: regexp.MustCompile(`(?m)^C methylated in CpG context:\s+([\d.]+)%`)},
	{Metric: "me_percent_chg_meth", Re: regexp.MustCompile(`(?m)^C methylated in CHG context:\s+([\d.]+)%`)},
	{Metric: "me_percent_chh_meth", Re: regexp.MustCompile(`(?m)^C methylated in CHH context:\s+([\d.]+)%`)},
}

// derivedFields are computed after flattening. Candidate order is the
// fallback order: methylation extraction numbers are preferred over the
// alignment report's own methylation calls, and the reported percentage
// over a recomputed meth/(meth+unmeth) ratio.
var derivedFields = []ingest.Field{
	{
		Metric: "percent_cpg_meth",
		Candidates: []ingest.Candidate{
			{Source: typeMethExtract, Compute: firstOK(
				ingest.Copy("me_percent_cpg_meth"),
				ingest.PercentOfSum("me_meth_cpg", "me_unmeth_cpg"),
			)},
			{Source: typeAlignment, Compute: firstOK(
				ingest.Copy("aln_percent_cpg_meth"),
				ingest.PercentOfSum("aln_meth_cpg", "aln_unmeth_cpg"),
			)},
		},
	},
	{
		Metric: "total_c",
		Candidates: []ingest.Candidate{
			{Source: typeMethExtract, Compute: ingest.Copy("me_total_c")},
			{Source: typeAlignment, Compute: ingest.Copy("aln_total_c")},
		},
	},
	{
		Metric: "percent_aligned",
		Candidates: []ingest.Candidate{
			{Source: typeAlignment, Compute: ingest.Percent("aligned_reads", "total_reads")},
		},
	},
}

func firstOK(computes ...func(ingest.Metrics) (float64, bool)) func(ingest.Metrics) (float64, bool) {
	return func(m ingest.Metrics) (float64, bool) {
		for _, compute := range computes {
			if v, ok := compute(m); ok {
				return v, true
			}
		}

		return 0, false
	}
}

// Module is the Bismark report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "bismark",
		Name: "Bismark",
		Href: "http://www.bioinformatics.babraham.ac.uk/projects/bismark/",
		Info: "maps bisulfite converted sequence reads and determines cytosine methylation states",
	}
}

// Run parses all Bismark reports in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	mod.collectAlignment(r, store)
	mod.collectDedup(r, store)
	mod.collectMethExtract(r, store)

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("bismark: %w", err)
	}

	data := ingest.Derive(store, flattenPriority, derivedFields)

	if err := r.WriteData("qcfang_bismark", data); err != nil {
		return fmt.Errorf("bismark: %w", err)
	}

	mod.addGeneralStats(r, data)
	mod.addAlignmentSection(r, store, data)
	mod.addMethylationSection(r, store, data)

	r.RecordModule("bismark", "Bismark", store.Len())

	return nil
}

func (mod *Module) collectAlignment(r *report.Run, store *ingest.Store) {
	files := r.Files.Find(
		discovery.Pattern{Suffix: "_PE_report.txt"},
		discovery.Pattern{Suffix: "_SE_report.txt"},
	)

	for _, f := range files {
		text := f.Text()

		m := alignmentSentinel.FindStringSubmatch(text)
		if m == nil {
			r.Logger.Warn("unrecognised bismark alignment report", "file", f.Path)

			continue
		}

		store.Merge(r.CleanSampleName(m[1]), typeAlignment, alignmentPatterns.Extract(text))
	}
}

func (mod *Module) collectDedup(r *report.Run, store *ingest.Store) {
	for _, f := range r.Files.Find(discovery.Pattern{Suffix: ".deduplication_report.txt"}) {
		text := f.Text()

		m := dedupSentinel.FindStringSubmatch(text)
		if m == nil {
			r.Logger.Warn("unrecognised bismark deduplication report", "file", f.Path)

			continue
		}

		store.Merge(r.CleanSampleName(m[1]), typeDedup, dedupPatterns.Extract(text))
	}
}

func (mod *Module) collectMethExtract(r *report.Run, store *ingest.Store) {
	for _, f := range r.Files.Find(discovery.Pattern{Suffix: "_splitting_report.txt"}) {
		text := f.Text()

		// The first line of a splitting report is the input file name.
		name, _, _ := strings.Cut(text, "\n")
		if strings.TrimSpace(name) == "" {
			r.Logger.Warn("unrecognised bismark splitting report", "file", f.Path)

			continue
		}

		store.Merge(r.CleanSampleName(name), typeMethExtract, methExtractPatterns.Extract(text))
	}
}

func (mod *Module) addGeneralStats(r *report.Run, data map[string]ingest.Metrics) {
	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }
	prefix := r.Config.ReadCount.Prefix
	desc := r.Config.ReadCount.Desc

	cols := []report.Column{
		{
			Key: "percent_cpg_meth", Title: "% Meth", Suffix: "%", Scale: "BrBG",
			Description: "Bismark: % cytosines methylated in CpG context",
		},
		{
			Key: "total_c", Title: prefix + " C's", Scale: "Purples", Modify: toShared,
			Description: "Bismark: total number of C's analysed (" + desc + ")",
		},
		{
			Key: "dup_reads_percent", Title: "% Dups", Suffix: "%", Scale: "RdYlGn-rev",
			Description: "Bismark: percent duplicated alignments",
		},
		{
			Key: "dedup_reads", Title: prefix + " Unique", Scale: "Greens", Modify: toShared,
			Description: "Bismark: deduplicated alignments (" + desc + ")",
		},
		{
			Key: "percent_aligned", Title: "% Aligned", Suffix: "%", Scale: "YlGn",
			Description: "Bismark: percent aligned sequences",
		},
		{
			Key: "aligned_reads", Title: prefix + " Aligned", Scale: "PuRd", Modify: toShared,
			Description: "Bismark: total aligned sequences (" + desc + ")",
		},
	}

	r.AddGeneralStats(cols, data)
}

// Alignment chart series names, in stacking order.
const (
	catNoGenomic    = "No Genomic Sequence"
	catNoAlignment  = "Did Not Align"
	catAmbiguous    = "Aligned Ambiguously"
	catUnique       = "Aligned Uniquely"
	catDuplicated   = "Duplicated Unique Alignments"
	catDeduplicated = "Deduplicated Unique Alignments"
)

func (mod *Module) addAlignmentSection(r *report.Run, store *ingest.Store, data map[string]ingest.Metrics) {
	samples := store.Samples()
	series := map[string][]plotpage.SeriesData{}
	order := []string{catNoGenomic, catNoAlignment, catAmbiguous, catUnique, catDuplicated, catDeduplicated}

	for _, sn := range samples {
		m := data[sn]

		series[catNoGenomic] = append(series[catNoGenomic], m["discarded_reads"])
		series[catNoAlignment] = append(series[catNoAlignment], m["no_alignments"])
		series[catAmbiguous] = append(series[catAmbiguous], m["ambig_reads"])

		// When deduplication ran, show the duplicated/deduplicated split
		// instead of the raw unique-alignment count.
		dup, okDup := m["dup_reads"]
		dedup, okDedup := m["dedup_reads"]

		if okDup && okDedup {
			series[catDuplicated] = append(series[catDuplicated], dup)
			series[catDeduplicated] = append(series[catDeduplicated], dedup)
			series[catUnique] = append(series[catUnique], 0.0)
		} else {
			series[catUnique] = append(series[catUnique], m["aligned_reads"])
			series[catDuplicated] = append(series[catDuplicated], 0.0)
			series[catDeduplicated] = append(series[catDeduplicated], 0.0)
		}
	}

	bars := make([]plotpage.BarSeries, 0, len(order))

	for _, cat := range order {
		if !hasNonZero(series[cat]) {
			continue
		}

		bars = append(bars, plotpage.BarSeries{Name: cat, Data: series[cat], Stack: "alignment"})
	}

	r.AddSection(report.Section{
		Module:   "bismark",
		Title:    "Alignment Rates",
		Anchor:   "bismark-alignment",
		Subtitle: "Bismark alignment outcomes per sample, stacked.",
		Content:  plotpage.BuildBarChart(nil, samples, bars, "# Reads"),
	})
}

func (mod *Module) addMethylationSection(r *report.Run, store *ingest.Store, data map[string]ingest.Metrics) {
	samples := store.Samples()
	helptext := "Numbers taken from methylation extraction report."

	var unmeth, meth []plotpage.SeriesData

	for _, sn := range samples {
		m := data[sn]

		if u, ok := m["me_unmeth_cpg"]; ok {
			unmeth = append(unmeth, u)
			meth = append(meth, m["me_meth_cpg"])

			continue
		}

		unmeth = append(unmeth, m["aln_unmeth_cpg"])
		meth = append(meth, m["aln_meth_cpg"])
		helptext = "Numbers taken from Bismark alignment report."
	}

	bars := []plotpage.BarSeries{
		{Name: "Unmethylated CpG", Data: unmeth, Stack: "meth"},
		{Name: "Methylated CpG", Data: meth, Stack: "meth"},
	}

	r.AddSection(report.Section{
		Module:   "bismark",
		Title:    "Cytosine Methylation",
		Anchor:   "bismark-methylation",
		Subtitle: "CpG methylation calls per sample.",
		Helptext: helptext,
		Content:  plotpage.BuildBarChart(nil, samples, bars, "# Calls"),
	})
}

func hasNonZero(data []plotpage.SeriesData) bool {
	for _, v := range data {
		if f, ok := v.(float64); ok && f > 0 {
			return true
		}
	}

	return false
}
