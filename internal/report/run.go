// Package report collects module output — sections, general statistics and
// data files — for a single qcfang run and renders it as HTML.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

// DataDirName is the directory inside the output dir holding parsed data files.
const DataDirName = "qcfang_data"

// ReportFileName is the rendered HTML report file name.
const ReportFileName = "qcfang_report.html"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Section is one module-contributed block of the report.
type Section struct {
	Module   string
	Title    string
	Anchor   string
	Subtitle string
	Helptext string
	Content  plotpage.Renderable
}

// ModuleResult records how many samples a module contributed, for the
// terminal summary.
type ModuleResult struct {
	ID      string
	Name    string
	Samples int
}

// Run accumulates everything the modules produce during one invocation.
type Run struct {
	Config *config.Config
	Files  *discovery.Index
	Logger *slog.Logger

	sections    []Section
	generalCols []Column
	generalRows map[string]ingest.Metrics
	results     []ModuleResult
}

// NewRun creates a run context over discovered files.
func NewRun(cfg *config.Config, files *discovery.Index, logger *slog.Logger) *Run {
	if logger == nil {
		logger = slog.Default()
	}

	return &Run{
		Config:      cfg,
		Files:       files,
		Logger:      logger,
		generalRows: make(map[string]ingest.Metrics),
	}
}

// CleanSampleName strips configured file extensions from a sample name.
func (r *Run) CleanSampleName(name string) string {
	return ingest.CleanSampleName(name, r.Config.Samples.CleanExts)
}

// AddSection appends a report section.
func (r *Run) AddSection(s Section) {
	r.sections = append(r.sections, s)
}

// Sections returns the accumulated sections in module order.
func (r *Run) Sections() []Section {
	return r.sections
}

// AddGeneralStats merges a module's headline columns and per-sample values
// into the run-wide general statistics table. Later modules never overwrite
// metrics already present for a sample.
func (r *Run) AddGeneralStats(cols []Column, rows map[string]ingest.Metrics) {
	for _, c := range cols {
		if !slices.ContainsFunc(r.generalCols, func(e Column) bool { return e.Key == c.Key }) {
			r.generalCols = append(r.generalCols, c)
		}
	}

	for sample, metrics := range rows {
		dst, ok := r.generalRows[sample]
		if !ok {
			dst = make(ingest.Metrics, len(metrics))
			r.generalRows[sample] = dst
		}

		for k, v := range metrics {
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
}

// GeneralStats returns the merged general statistics table, or nil when no
// module contributed any.
func (r *Run) GeneralStats() *Table {
	if len(r.generalRows) == 0 {
		return nil
	}

	return NewTable("general_stats", r.generalCols, r.generalRows)
}

// RecordModule notes a module's sample count for the terminal summary.
func (r *Run) RecordModule(id, name string, samples int) {
	r.results = append(r.results, ModuleResult{ID: id, Name: name, Samples: samples})
}

// Results returns the recorded per-module sample counts.
func (r *Run) Results() []ModuleResult {
	return r.results
}

// TotalSamples sums sample counts across all recorded modules.
func (r *Run) TotalSamples() int {
	total := 0
	for _, res := range r.results {
		total += res.Samples
	}

	return total
}

// DataDir returns the path of the parsed-data directory.
func (r *Run) DataDir() string {
	return filepath.Join(r.Config.OutputDir, DataDirName)
}

// WriteData serializes parsed module data to the data directory in the
// configured format. The name is a file stem such as "qcfang_bismark".
func (r *Run) WriteData(name string, v any) error {
	if err := os.MkdirAll(r.DataDir(), dirPerm); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	var (
		body []byte
		err  error
		ext  string
	)

	switch r.Config.DataFormat {
	case config.DataFormatJSON:
		body, err = json.MarshalIndent(v, "", "  ")
		ext = ".json"
	default:
		body, err = yaml.Marshal(v)
		ext = ".yaml"
	}

	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(r.DataDir(), name+ext)
	if err := os.WriteFile(path, body, filePerm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	r.Logger.Debug("wrote data file", "path", path)

	return nil
}

// RenderHTML writes the full report page. The general statistics table, when
// present, always leads.
func (r *Run) RenderHTML(w io.Writer, theme plotpage.Theme) error {
	page := plotpage.NewPage(r.Config.Title, r.subtitle()).WithTheme(theme)

	if gs := r.GeneralStats(); gs != nil {
		page.Add(plotpage.Section{
			Title:    "General Statistics",
			Anchor:   "general_stats",
			Subtitle: "Headline metrics from every module, one row per sample.",
			Content:  gs,
		})
	}

	for _, s := range r.sections {
		page.Add(plotpage.Section{
			Title:    s.Title,
			Anchor:   s.Anchor,
			Subtitle: s.Subtitle,
			Helptext: s.Helptext,
			Content:  s.Content,
		})
	}

	return page.Render(w)
}

// WriteReport renders the HTML report into the output directory and returns
// its path.
func (r *Run) WriteReport(theme plotpage.Theme) (string, error) {
	if err := os.MkdirAll(r.Config.OutputDir, dirPerm); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(r.Config.OutputDir, ReportFileName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := r.RenderHTML(f, theme); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	return path, nil
}

func (r *Run) subtitle() string {
	n := 0

	for _, res := range r.results {
		if res.Samples > 0 {
			n++
		}
	}

	return fmt.Sprintf("%d modules reported on %d samples", n, r.TotalSamples())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(a, b) })

	return keys
}
