// Package unitas parses unitas small non-coding RNA annotation reports:
// the annotation summary, per-biotype sequence length distributions and
// simplified miRNA counts.
package unitas

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

// minDetect is the read-count threshold for a miRNA gene to count as
// detected.
const minDetect = 3

// maxSeqLen is the last nucleotide position of a length distribution.
const maxSeqLen = 50

const otherBiotype = "other"

// biotypes are the annotation categories reported individually; everything
// else folds into "other".
var biotypes = []string{"miRNA", "tRNA", "rRNA", "protein_coding", "lincRNA", "snoRNA", "no annotation"}

var mirInfoRe = regexp.MustCompile(`^unitas\.miR\..*\.info$`)

// seqlenFiles maps biotype to its .info file matcher.
var seqlenFiles = map[string]func(name string) bool{
	"miRNA":         func(name string) bool { return mirInfoRe.MatchString(name) },
	"tRNA":          func(name string) bool { return name == "unitas.tRNA.info" },
	"rRNA":          func(name string) bool { return name == "unitas.rRNA.info" },
	"snoRNA":        func(name string) bool { return name == "unitas.snoRNA.info" },
	"no annotation": func(name string) bool { return name == "unitas.no-annotation.info" },
	"protein_coding": func(name string) bool {
		return name == "unitas.protein_coding.info"
	},
	"lincRNA": func(name string) bool { return name == "unitas.lincRNA.info" },
}

// Module is the unitas report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "unitas",
		Name: "Unitas",
		Href: "https://www.smallrnagroup.uni-mainz.de/software.html",
		Info: "annotation of small non-coding RNA sequence datasets",
	}
}

// Run parses all unitas reports in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	annotations, fractions := mod.collectAnnotations(r)
	if len(annotations) == 0 {
		return fmt.Errorf("unitas: %w", ingest.ErrNoSamples)
	}

	detected := mod.collectMirnaCounts(r)
	seqlen := mod.collectSeqlen(r)

	if err := r.WriteData("qcfang_unitas", annotations); err != nil {
		return fmt.Errorf("unitas: %w", err)
	}

	mod.addGeneralStats(r, fractions, detected)
	mod.addAnnotationSection(r, annotations)

	if len(seqlen) > 0 {
		mod.addSeqlenSection(r, seqlen)
	}

	r.RecordModule("unitas", "Unitas", len(annotations))

	return nil
}

func ignored(name string, globs []string) bool {
	for _, g := range globs {
		if matched, err := path.Match(g, name); err == nil && matched {
			return true
		}
	}

	return false
}

// collectAnnotations parses annotation summary files. The sample name is
// the directory holding the summary. Indented lines are sub-category
// breakdowns and are skipped; categories outside the known biotypes
// accumulate under "other".
func (mod *Module) collectAnnotations(r *report.Run) (map[string]ingest.Metrics, ingest.Metrics) {
	annotations := map[string]ingest.Metrics{}
	fractions := ingest.Metrics{}

	known := map[string]bool{}
	for _, b := range biotypes {
		known[b] = true
	}

	for _, f := range r.Files.Find(discovery.Pattern{Exact: "unitas.annotation_summary.txt"}) {
		sample := r.CleanSampleName(filepath.Base(f.Root))
		if ignored(sample, r.Config.Samples.Ignore) {
			continue
		}

		counts := ingest.Metrics{}
		total := 0.0

		for _, line := range strings.Split(f.Text(), "\n") {
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, " ") {
				continue
			}

			els := strings.Split(line, "\t")
			fields := strings.Fields(line)

			if len(fields) < 2 {
				continue
			}

			v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				continue
			}

			name := strings.TrimSpace(els[0])
			if !known[name] {
				name = otherBiotype
			}

			counts[name] += v
			total += v
		}

		if len(counts) == 0 {
			r.Logger.Warn("unrecognised unitas annotation summary", "file", f.Path)

			continue
		}

		annotations[sample] = counts

		if total > 0 {
			fractions[sample] = counts["miRNA"] / total
		}
	}

	return annotations, fractions
}

// collectMirnaCounts counts miRNA genes with at least minDetect reads in
// the simplified table. The sample name is the directory holding the file.
func (mod *Module) collectMirnaCounts(r *report.Run) ingest.Metrics {
	detected := ingest.Metrics{}

	for _, f := range r.Files.Find(discovery.Pattern{Exact: "unitas.miR-table_simplified.txt"}) {
		sample := r.CleanSampleName(filepath.Base(f.Root))
		if ignored(sample, r.Config.Samples.Ignore) {
			continue
		}

		lines := strings.Split(f.Text(), "\n")
		present := 0.0

		// The first two lines are headers.
		for i, line := range lines {
			if i < 2 || strings.TrimSpace(line) == "" {
				continue
			}

			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}

			v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err == nil && v >= minDetect {
				present++
			}
		}

		detected[sample] = present
	}

	return detected
}

// seqlenData is biotype -> sample -> per-position read counts (1..50).
type seqlenData map[string]map[string][]float64

// collectSeqlen parses per-biotype .info sequence length distributions.
// The sample name is the grandparent directory, since unitas writes .info
// files into a per-sample results subdirectory.
func (mod *Module) collectSeqlen(r *report.Run) seqlenData {
	seqlen := seqlenData{}

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: ".info"}) {
		biotype := ""

		for b, match := range seqlenFiles {
			if match(f.Name) {
				biotype = b

				break
			}
		}

		if biotype == "" {
			continue
		}

		sample := r.CleanSampleName(filepath.Base(filepath.Dir(f.Root)))
		if ignored(sample, r.Config.Samples.Ignore) {
			continue
		}

		data := make([]float64, maxSeqLen)

		for i, line := range strings.Split(f.Text(), "\n") {
			if i < 2 {
				continue
			}

			if strings.TrimSpace(line) == "" {
				break
			}

			xs, ys, ok := strings.Cut(line, "\t")
			if !ok {
				continue
			}

			x, errX := strconv.Atoi(strings.TrimSpace(xs))
			if errX != nil || x < 1 || x > maxSeqLen {
				continue
			}

			y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
			if errY != nil {
				y = 0
			}

			data[x-1] = y
		}

		if seqlen[biotype] == nil {
			seqlen[biotype] = map[string][]float64{}
		}

		seqlen[biotype][sample] = data
	}

	return seqlen
}

func (mod *Module) addGeneralStats(r *report.Run, fractions, detected ingest.Metrics) {
	const percentScale = 100

	rows := map[string]ingest.Metrics{}

	for sample, v := range fractions {
		rows[sample] = ingest.Metrics{"mirna_fraction": v}
	}

	for sample, v := range detected {
		if rows[sample] == nil {
			rows[sample] = ingest.Metrics{}
		}

		rows[sample]["mirna_detected"] = v
	}

	cols := []report.Column{
		{
			Key: "mirna_fraction", Title: "% miRNA", Suffix: "%", Scale: "YlGn",
			Modify:      func(v float64) float64 { return v * percentScale },
			Description: "Percentage of filtered and trimmed sequences annotated to miRNA type",
		},
		{
			Key: "mirna_detected", Title: "# Genes", Scale: "Bu", Digits: -1,
			Description: fmt.Sprintf("Number of miRNA genes detected with at least %d reads", minDetect),
		},
	}

	r.AddGeneralStats(cols, rows)
}

func (mod *Module) addAnnotationSection(r *report.Run, annotations map[string]ingest.Metrics) {
	samples := make([]string, 0, len(annotations))
	for sn := range annotations {
		samples = append(samples, sn)
	}

	sort.Strings(samples)

	categories := append(append([]string{}, biotypes...), otherBiotype)
	bars := make([]plotpage.BarSeries, 0, len(categories))

	for _, cat := range categories {
		values := make([]plotpage.SeriesData, len(samples))
		for i, sn := range samples {
			values[i] = annotations[sn][cat]
		}

		bars = append(bars, plotpage.BarSeries{Name: cat, Data: values, Stack: "annotation"})
	}

	r.AddSection(report.Section{
		Module:   "unitas",
		Title:    "Annotations",
		Anchor:   "unitas-annotations",
		Subtitle: "Distribution of small RNA annotation types per sample.",
		Helptext: "All rates are per mapped read.",
		Content:  plotpage.BuildBarChart(nil, samples, bars, "# Reads"),
	})
}

func (mod *Module) addSeqlenSection(r *report.Run, seqlen seqlenData) {
	positions := make([]string, maxSeqLen)
	for i := range positions {
		positions[i] = strconv.Itoa(i + 1)
	}

	items := make([]plotpage.TabItem, 0, len(seqlen))

	for _, biotype := range biotypes {
		bySample, ok := seqlen[biotype]
		if !ok {
			continue
		}

		samples := make([]string, 0, len(bySample))
		for sn := range bySample {
			samples = append(samples, sn)
		}

		sort.Strings(samples)

		series := make([]plotpage.LineSeries, 0, len(samples))

		for _, sn := range samples {
			values := make([]plotpage.SeriesData, maxSeqLen)
			for i, v := range bySample[sn] {
				values[i] = v
			}

			series = append(series, plotpage.LineSeries{Name: sn, Data: values})
		}

		items = append(items, plotpage.TabItem{
			ID:      "seqlen-" + strings.ReplaceAll(strings.ToLower(biotype), " ", "-"),
			Label:   biotype,
			Content: plotpage.BuildLineChart(nil, positions, series, "# "+biotype+" Reads"),
		})
	}

	r.AddSection(report.Section{
		Module:   "unitas",
		Title:    "Sequence Length Distribution",
		Anchor:   "unitas-seqlen",
		Subtitle: "Read counts per sequence length, by annotation biotype.",
		Content:  plotpage.NewTabs("unitas_seqlen", items...),
	})
}
