// Package dragentime parses DRAGEN time_metrics.csv run-time reports.
package dragentime

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
	"github.com/Sumatoshi-tech/qcfang/internal/report/plotpage"
)

const (
	metricsSuffix = ".time_metrics.csv"
	reportType    = "time"

	totalRuntimeMetric = "Total runtime"
	stepPrefix         = "Time "

	secondsPerMinute = 60
)

// Module is the DRAGEN time metrics report module.
type Module struct{}

// New creates the module.
func New() *Module { return &Module{} }

// Descriptor returns stable module metadata.
func (*Module) Descriptor() modules.Descriptor {
	return modules.Descriptor{
		ID:   "dragen_time",
		Name: "DRAGEN Time Metrics",
		Href: "https://www.illumina.com/products/by-type/informatics-products/dragen-bio-it-platform.html",
		Info: "run time metrics from the DRAGEN Bio-IT platform",
	}
}

// Run parses all DRAGEN time metrics files in the discovery index.
func (mod *Module) Run(r *report.Run) error {
	store := ingest.NewStore()

	for _, f := range r.Files.Find(discovery.Pattern{Suffix: metricsSuffix}) {
		metrics, err := parseTimeMetrics(f.Text())
		if err != nil {
			r.Logger.Warn("could not parse dragen time metrics", "file", f.Path, "error", err)

			continue
		}

		sample := r.CleanSampleName(strings.TrimSuffix(f.Name, metricsSuffix))

		if store.Has(sample, reportType) {
			r.Logger.Debug("duplicate sample name, overwriting", "sample", sample)
		}

		store.Merge(sample, reportType, metrics)
	}

	store.Ignore(r.Config.Samples.Ignore)

	if err := store.Err(); err != nil {
		return fmt.Errorf("dragen_time: %w", err)
	}

	data := store.Flatten(reportType)

	if err := r.WriteData("qcfang_dragen_time", data); err != nil {
		return fmt.Errorf("dragen_time: %w", err)
	}

	mod.addTimeSection(r, store, data)
	r.RecordModule("dragen_time", "DRAGEN Time Metrics", store.Len())

	return nil
}

// parseTimeMetrics reads RUN TIME rows. Each carries a metric name, a
// formatted timestamp and the duration in seconds; only the seconds column
// is kept.
func parseTimeMetrics(text string) (ingest.Metrics, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	metrics := make(ingest.Metrics)

	for _, rec := range records {
		if len(rec) < 5 || rec[0] != "RUN TIME" {
			continue
		}

		seconds, parseErr := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if parseErr != nil {
			continue
		}

		metrics[strings.TrimSpace(rec[2])] = seconds
	}

	if len(metrics) == 0 {
		return nil, fmt.Errorf("no RUN TIME rows")
	}

	return metrics, nil
}

// addTimeSection renders tabbed bar charts: total runtime per sample, and
// the per-step breakdown. Seconds are converted to minutes here at the
// chart boundary.
func (mod *Module) addTimeSection(r *report.Run, store *ingest.Store, data map[string]ingest.Metrics) {
	samples := store.Samples()

	total := make([]plotpage.SeriesData, len(samples))
	for i, sn := range samples {
		total[i] = data[sn][totalRuntimeMetric] / secondsPerMinute
	}

	totalChart := plotpage.BuildBarChart(nil, samples,
		[]plotpage.BarSeries{{Name: totalRuntimeMetric, Data: total}}, "Time (minutes)")

	stepNames := collectStepNames(samples, data)
	stepSeries := make([]plotpage.BarSeries, 0, len(stepNames))

	for _, step := range stepNames {
		values := make([]plotpage.SeriesData, len(samples))

		for i, sn := range samples {
			values[i] = data[sn][step] / secondsPerMinute
		}

		stepSeries = append(stepSeries, plotpage.BarSeries{
			Name:  strings.TrimPrefix(step, stepPrefix),
			Data:  values,
			Stack: "steps",
		})
	}

	stepsChart := plotpage.BuildBarChart(nil, samples, stepSeries, "Time (minutes)")

	r.AddSection(report.Section{
		Module: "dragen_time",
		Title:  "Time Metrics",
		Anchor: "dragen-time-metrics",
		Subtitle: "Time metrics for the DRAGEN run. Total run time is less than the sum " +
			"of individual steps because of parallelization.",
		Content: plotpage.NewTabs("dragen_time_metrics",
			plotpage.TabItem{ID: "total", Label: "Total Runtime", Content: totalChart},
			plotpage.TabItem{ID: "steps", Label: "Steps Breakdown", Content: stepsChart},
		),
	})
}

// collectStepNames returns every step metric seen across samples, sorted,
// excluding the total.
func collectStepNames(samples []string, data map[string]ingest.Metrics) []string {
	seen := map[string]bool{}

	var names []string

	for _, sn := range samples {
		for metric := range data[sn] {
			if metric == totalRuntimeMetric || seen[metric] {
				continue
			}

			seen[metric] = true
			names = append(names, metric)
		}
	}

	sort.Strings(names)

	return names
}
