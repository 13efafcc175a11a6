// Package ingest implements the shared report ingestion pipeline: regex
// metric extraction, per-sample aggregation, and derived-field computation.
package ingest

import (
	"regexp"
	"strconv"
)

// Metrics maps a metric name to its numeric value.
type Metrics map[string]float64

// Pattern binds a metric name to a regular expression with exactly one
// capturing group yielding a numeric string.
type Pattern struct {
	Metric string
	Re     *regexp.Regexp
}

// Table is a declarative set of extraction patterns for one report type.
type Table []Pattern

// Extract searches text with every pattern in the table and returns the
// captured values parsed as float64. Patterns that do not match, or whose
// capture fails to parse, leave their metric absent from the result.
// Absence is meaningful: it signals "not reported", not zero.
func (t Table) Extract(text string) Metrics {
	found := make(Metrics)

	for _, p := range t {
		m := p.Re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}

		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}

		found[p.Metric] = v
	}

	return found
}
