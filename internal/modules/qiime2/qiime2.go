// Package qiime2 parses QIIME 2 microbiome workflow exports: dada2
// denoising statistics, taxonomy classifications and robust PCA
// ordinations.
package qiime2

import (
	"fmt"
	"path"
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

const totalRegion = "Total"

// dada2Stages are the cumulative read-count columns of a dada2 stats
// export, in pipeline order.
var dada2Stages = []string{"input", "filtered", "denoised", "merged", "non-chimeric"}

// dada2Categories maps count keys to their chart display names.
var dada2Categories = []struct {
	Key  string
	Name string
}{
	{"passed", "Passed Filter"},
	{"filtered", "Low Quality"},
	{"merged", "No Overlap"},
	{"denoised", "Failed Denoising"},
	{"non-chimeric", "Chimeric"},
}

var taxaLevels = []string{"Kingdom", "Phylum", "Class", "Order", "Family", "Genus", "Species"}

var levelFileRe = regexp.MustCompile(`^level-(\d+)\.csv$`)

// Module is the QIIME 2 report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "qiime2",
		Name: "QIIME 2",
		Href: "https://docs.qiime2.org/",
		Info: "microbiome workflows for variable region sequencing analysis",
	}
}

// Run parses all QIIME 2 exports in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	samples := map[string]bool{}

	dada2 := mod.collectDada2(r, samples)
	taxa, db := mod.collectTaxonomy(r, samples)
	rpca := mod.collectRPCA(r, samples)

	if len(dada2) == 0 && len(taxa) == 0 && len(rpca) == 0 {
		return fmt.Errorf("qiime2: %w", ingest.ErrNoSamples)
	}

	if len(dada2) > 0 {
		if err := r.WriteData("qcfang_qiime2_dada2", dada2); err != nil {
			return fmt.Errorf("qiime2: %w", err)
		}

		mod.addDada2Section(r, dada2)
		mod.addDada2GeneralStats(r, dada2)
	}

	if len(taxa) > 0 {
		if err := r.WriteData("qcfang_qiime2_taxonomy", taxa); err != nil {
			return fmt.Errorf("qiime2: %w", err)
		}

		mod.addTaxonomySection(r, taxa, db)
	}

	if len(rpca) > 0 {
		if err := r.WriteData("qcfang_qiime2_rpca", rpca); err != nil {
			return fmt.Errorf("qiime2: %w", err)
		}

		mod.addRPCASection(r, rpca)
	}

	r.RecordModule("qiime2", "QIIME 2", len(samples))

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

// --- dada2 denoising statistics ---

// collectDada2 parses dada2 stats exports into per-region incremental
// counts, accumulating a Total pseudo-region across amplicon regions.
// Sample names carry the region as their final underscore-separated token.
func (mod *Module) collectDada2(r *report.Run, seen map[string]bool) map[string]map[string]ingest.Metrics {
	regions := map[string]map[string]ingest.Metrics{}

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: "dada2_stats.tsv"}) {
		parsed, err := parseDada2Stats(f.Text())
		if err != nil {
			r.Logger.Warn("could not parse qiime2 dada2 stats", "file", f.Path, "error", err)

			continue
		}

		for region, bySample := range parsed {
			for sample, counts := range bySample {
				sample = r.CleanSampleName(sample)
				if ignored(sample, r.Config.Samples.Ignore) {
					continue
				}

				seen[sample] = true

				if regions[region] == nil {
					regions[region] = map[string]ingest.Metrics{}
				}

				regions[region][sample] = counts

				if regions[totalRegion] == nil {
					regions[totalRegion] = map[string]ingest.Metrics{}
				}

				total, ok := regions[totalRegion][sample]
				if !ok {
					total = make(ingest.Metrics, len(counts))
					regions[totalRegion][sample] = total
				}

				for k, v := range counts {
					total[k] += v
				}
			}
		}
	}

	return regions
}

// parseDada2Stats turns the cumulative per-stage read counts of a dada2
// stats TSV into incremental losses per stage plus a final "passed" count.
func parseDada2Stats(text string) (map[string]map[string]ingest.Metrics, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	header := strings.Split(lines[0], "\t")
	if len(header) < 2 {
		return nil, fmt.Errorf("malformed header")
	}

	colIndex := map[string]int{}
	for i, name := range header[1:] {
		colIndex[strings.TrimSpace(name)] = i + 1
	}

	for _, stage := range dada2Stages {
		if _, ok := colIndex[stage]; !ok {
			return nil, fmt.Errorf("missing column %q", stage)
		}
	}

	out := map[string]map[string]ingest.Metrics{}

	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		els := strings.Split(line, "\t")
		if len(els) < len(header) {
			continue
		}

		name := els[0]

		idx := strings.LastIndex(name, "_")
		if idx <= 0 {
			continue
		}

		sample, region := name[:idx], name[idx+1:]

		cumulative := make([]float64, len(dada2Stages))

		valid := true

		for i, stage := range dada2Stages {
			v, parseErr := strconv.ParseFloat(strings.TrimSpace(els[colIndex[stage]]), 64)
			if parseErr != nil {
				valid = false

				break
			}

			cumulative[i] = v
		}

		if !valid {
			continue
		}

		counts := make(ingest.Metrics, len(dada2Stages))
		for i := 1; i < len(cumulative); i++ {
			counts[dada2Stages[i]] = cumulative[i-1] - cumulative[i]
		}

		counts["passed"] = cumulative[len(cumulative)-1]

		if out[region] == nil {
			out[region] = map[string]ingest.Metrics{}
		}

		out[region][sample] = counts
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no parsable rows")
	}

	return out, nil
}

// regionOrder sorts amplicon regions, putting Total first when more than
// one real region contributed.
func regionOrder(regions map[string]map[string]ingest.Metrics) []string {
	var names []string

	for region := range regions {
		if region != totalRegion {
			names = append(names, region)
		}
	}

	sort.Strings(names)

	if _, ok := regions[totalRegion]; ok && len(names) > 1 {
		names = append([]string{totalRegion}, names...)
	}

	return names
}

func (mod *Module) addDada2Section(r *report.Run, regions map[string]map[string]ingest.Metrics) {
	order := regionOrder(regions)
	items := make([]plotpage.TabItem, 0, len(order))

	for _, region := range order {
		bySample := regions[region]
		samples := sortedSamples(bySample)

		bars := make([]plotpage.BarSeries, 0, len(dada2Categories))

		for _, cat := range dada2Categories {
			values := make([]plotpage.SeriesData, len(samples))
			for i, sn := range samples {
				values[i] = bySample[sn][cat.Key]
			}

			bars = append(bars, plotpage.BarSeries{Name: cat.Name, Data: values, Stack: "dada2"})
		}

		items = append(items, plotpage.TabItem{
			ID:      "dada2-" + strings.ToLower(region),
			Label:   region,
			Content: plotpage.BuildBarChart(nil, samples, bars, "# Reads"),
		})
	}

	r.AddSection(report.Section{
		Module:   "qiime2",
		Title:    "Dada2 Filtered Reads",
		Anchor:   "qiime2-dada2-stats",
		Subtitle: "Filtering statistics after dada2 denoising, per amplicon region.",
		Helptext: "Passed Filter: reads going into taxonomic classification. " +
			"Low Quality: reads with too many low quality basepairs. " +
			"No Overlap: paired end reads that do not overlap. " +
			"Failed Denoising: reads not identified as a true sequence variant. " +
			"Chimeric: reads of chimeric origin.",
		Content: plotpage.NewTabs("qiime2_dada2", items...),
	})
}

func (mod *Module) addDada2GeneralStats(r *report.Run, regions map[string]map[string]ingest.Metrics) {
	total, ok := regions[totalRegion]
	if !ok {
		return
	}

	toShared := func(v float64) float64 { return v * r.Config.ReadCount.Multiplier }

	r.AddGeneralStats([]report.Column{{
		Key:         "passed",
		Title:       "Dada2 PF PE Reads",
		Scale:       "GnBu",
		Modify:      toShared,
		Description: "Dada2: number of paired end reads passed filter (" + r.Config.ReadCount.Desc + ")",
	}}, total)
}

// --- taxonomy classification ---

// taxonomyData is level name -> sample -> taxon counts.
type taxonomyData map[string]map[string]ingest.Metrics

// collectTaxonomy parses level-N.csv taxonomy exports. The reference
// database is detected from the taxon label syntax; Kingdom level carries
// no information and is dropped.
func (mod *Module) collectTaxonomy(r *report.Run, seen map[string]bool) (taxonomyData, string) {
	taxa := taxonomyData{}
	db := "custom"

	for _, f := range r.Files.Find(discovery.Pattern{Re: levelFileRe}) {
		m := levelFileRe.FindStringSubmatch(f.Name)

		level, err := strconv.Atoi(m[1])
		if err != nil || level < 1 || level > len(taxaLevels) {
			r.Logger.Warn("unexpected taxonomy level file", "file", f.Path)

			continue
		}

		levelName := taxaLevels[level-1]
		if levelName == "Kingdom" {
			continue
		}

		bySample, fileDB, parseErr := parseTaxonomyExport(f.Text())
		if parseErr != nil {
			r.Logger.Warn("could not parse qiime2 taxonomy export", "file", f.Path, "error", parseErr)

			continue
		}

		if fileDB != "custom" {
			db = fileDB
		}

		for sample, counts := range bySample {
			sample = r.CleanSampleName(sample)
			if ignored(sample, r.Config.Samples.Ignore) {
				continue
			}

			seen[sample] = true

			if taxa[levelName] == nil {
				taxa[levelName] = map[string]ingest.Metrics{}
			}

			taxa[levelName][sample] = counts
		}
	}

	return taxa, db
}

func detectDB(header string) (db, labelPattern string) {
	switch {
	case strings.Contains(header, "D_0__"):
		return "silva", "D_0__"
	case strings.Contains(header, "k__Fungi"):
		return "unite", "k__"
	case strings.Contains(header, "k__"):
		return "greengenes", "k__"
	default:
		return "custom", "k__"
	}
}

func parseTaxonomyExport(text string) (map[string]ingest.Metrics, string, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 2 {
		return nil, "", fmt.Errorf("no data rows")
	}

	db, labelPattern := detectDB(lines[0])

	header := strings.Split(lines[0], ",")

	var (
		labels  []string
		indices []int
	)

	for i, name := range header {
		if !strings.Contains(name, labelPattern) {
			continue
		}

		parts := strings.Split(name, ";")
		leaf := parts[len(parts)-1]

		if idx := strings.LastIndex(leaf, "__"); idx >= 0 {
			leaf = leaf[idx+2:]
		}

		leaf = strings.TrimSpace(leaf)
		if leaf == "" {
			leaf = "unclassified"
		}

		labels = append(labels, leaf)
		indices = append(indices, i)
	}

	if len(labels) == 0 {
		return nil, "", fmt.Errorf("no taxon columns recognised")
	}

	out := map[string]ingest.Metrics{}

	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		els := strings.Split(line, ",")
		if len(els) < len(header) {
			continue
		}

		counts := make(ingest.Metrics, len(labels))

		for j, i := range indices {
			v, err := strconv.ParseFloat(strings.TrimSpace(els[i]), 64)
			if err != nil {
				continue
			}

			counts[labels[j]] += v
		}

		if len(counts) > 0 {
			out[els[0]] = counts
		}
	}

	if len(out) == 0 {
		return nil, "", fmt.Errorf("no parsable rows")
	}

	return out, db, nil
}

func (mod *Module) addTaxonomySection(r *report.Run, taxa taxonomyData, db string) {
	items := make([]plotpage.TabItem, 0, len(taxa))

	for _, levelName := range taxaLevels {
		bySample, ok := taxa[levelName]
		if !ok {
			continue
		}

		samples := sortedSamples(bySample)

		// Series ordered by total abundance so dominant taxa stack first.
		totals := ingest.Metrics{}

		for _, counts := range bySample {
			for taxon, v := range counts {
				totals[taxon] += v
			}
		}

		taxons := make([]string, 0, len(totals))
		for taxon := range totals {
			taxons = append(taxons, taxon)
		}

		sort.Slice(taxons, func(i, j int) bool {
			if totals[taxons[i]] != totals[taxons[j]] {
				return totals[taxons[i]] > totals[taxons[j]]
			}

			return taxons[i] < taxons[j]
		})

		bars := make([]plotpage.BarSeries, 0, len(taxons))

		for _, taxon := range taxons {
			values := make([]plotpage.SeriesData, len(samples))
			for i, sn := range samples {
				values[i] = bySample[sn][taxon]
			}

			bars = append(bars, plotpage.BarSeries{Name: taxon, Data: values, Stack: "taxa"})
		}

		items = append(items, plotpage.TabItem{
			ID:      "taxa-" + strings.ToLower(levelName),
			Label:   levelName,
			Content: plotpage.BuildBarChart(nil, samples, bars, "# Reads"),
		})
	}

	r.AddSection(report.Section{
		Module:   "qiime2",
		Title:    "Taxonomic Classification",
		Anchor:   "qiime2-taxonomy",
		Subtitle: "Predicted taxonomy for QIIME 2 classification using the " + strings.ToUpper(db) + " reference database.",
		Helptext: "The taxonomy is classified with a naive bayes classifier trained on region " +
			"specific sequences of the reference database. Classifications at the lowest level " +
			"(species) must be considered with care as the variable ribosomal regions may not " +
			"carry enough information to classify correctly.",
		Content: plotpage.NewTabs("qiime2_taxonomy", items...),
	})
}

// --- robust PCA ordination ---

// Ordinate is one sample's position in the first two principal components.
type Ordinate struct {
	X float64 `yaml:"pc1" json:"pc1"`
	Y float64 `yaml:"pc2" json:"pc2"`
}

// collectRPCA parses ordination exports for the Site score block.
func (mod *Module) collectRPCA(r *report.Run, seen map[string]bool) map[string]Ordinate {
	out := map[string]Ordinate{}

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: "ordination.txt"}) {
		scores, err := parseOrdination(f.Text())
		if err != nil {
			r.Logger.Warn("could not parse qiime2 ordination", "file", f.Path, "error", err)

			continue
		}

		for sample, ord := range scores {
			sample = r.CleanSampleName(sample)
			if ignored(sample, r.Config.Samples.Ignore) {
				continue
			}

			seen[sample] = true
			out[sample] = ord
		}
	}

	return out
}

// parseOrdination extracts the Site block of an ordination results file:
// a "Site<TAB>rows<TAB>cols" header followed by one tab-separated score row
// per sample, terminated by a blank line.
func parseOrdination(text string) (map[string]Ordinate, error) {
	lines := strings.Split(text, "\n")
	out := map[string]Ordinate{}
	inBlock := false

	for _, line := range lines {
		if !inBlock {
			if strings.HasPrefix(line, "Site\t") {
				inBlock = true
			}

			continue
		}

		if strings.TrimSpace(line) == "" {
			break
		}

		els := strings.Split(line, "\t")
		if len(els) < 3 {
			continue
		}

		x, errX := strconv.ParseFloat(strings.TrimSpace(els[1]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(els[2]), 64)

		if errX != nil || errY != nil {
			continue
		}

		out[els[0]] = Ordinate{X: x, Y: y}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no Site scores found")
	}

	return out, nil
}

func (mod *Module) addRPCASection(r *report.Run, rpca map[string]Ordinate) {
	samples := make([]string, 0, len(rpca))
	for sn := range rpca {
		samples = append(samples, sn)
	}

	sort.Strings(samples)

	points := make([]plotpage.ScatterPoint, 0, len(samples))
	for _, sn := range samples {
		points = append(points, plotpage.ScatterPoint{Name: sn, X: rpca[sn].X, Y: rpca[sn].Y})
	}

	r.AddSection(report.Section{
		Module: "qiime2",
		Title:  "Sample Ordination",
		Anchor: "qiime2-deicode",
		Subtitle: "DEICODE robust compositional PCA over sample composition. Zero values " +
			"do not influence the resulting ordination.",
		Helptext: "Each point is a sample plotted in the first two principal components. " +
			"Points close to each other have similar bacterial content; points on opposite " +
			"sides of the origin have opposite bacterial content.",
		Content: plotpage.BuildScatterChart(nil, points, "PC1", "PC2"),
	})
}

func sortedSamples(m map[string]ingest.Metrics) []string {
	samples := make([]string, 0, len(m))
	for sn := range m {
		samples = append(samples, sn)
	}

	sort.Strings(samples)

	return samples
}
