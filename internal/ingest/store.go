package ingest

import (
	"errors"
	"path"
	"sort"
	"strings"
)

// ErrNoSamples is the distinct "no input found" signal a module reports when
// zero samples accumulated after scanning all inputs. The host skips the
// module's report section instead of rendering an empty one.
var ErrNoSamples = errors.New("no samples found")

// Store accumulates extracted metrics keyed by sample name and report type.
// A fresh store is created per run; entries are never removed once created,
// only updated.
type Store struct {
	samples map[string]map[string]Metrics
}

// NewStore creates an empty sample store.
func NewStore() *Store {
	return &Store{samples: make(map[string]map[string]Metrics)}
}

// Merge inserts extracted metrics under samples[sample][reportType].
// Merging the same payload twice yields the same state as merging it once.
func (s *Store) Merge(sample, reportType string, extracted Metrics) {
	byType, ok := s.samples[sample]
	if !ok {
		byType = make(map[string]Metrics)
		s.samples[sample] = byType
	}

	existing, ok := byType[reportType]
	if !ok {
		existing = make(Metrics, len(extracted))
		byType[reportType] = existing
	}

	for k, v := range extracted {
		existing[k] = v
	}
}

// Has reports whether the sample has any metrics for the given report type.
func (s *Store) Has(sample, reportType string) bool {
	byType, ok := s.samples[sample]
	if !ok {
		return false
	}

	_, ok = byType[reportType]

	return ok
}

// Report returns the metrics recorded for one sample and report type,
// or nil when absent.
func (s *Store) Report(sample, reportType string) Metrics {
	byType, ok := s.samples[sample]
	if !ok {
		return nil
	}

	return byType[reportType]
}

// Samples returns all sample names in sorted order.
func (s *Store) Samples() []string {
	names := make([]string, 0, len(s.samples))
	for name := range s.samples {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of samples in the store.
func (s *Store) Len() int {
	return len(s.samples)
}

// Err returns ErrNoSamples when the store is empty, nil otherwise.
func (s *Store) Err() error {
	if len(s.samples) == 0 {
		return ErrNoSamples
	}

	return nil
}

// Ignore removes samples whose name matches any of the given glob patterns.
// This is the host's sample filtering policy, applied after aggregation and
// before presentation. Malformed patterns never match.
func (s *Store) Ignore(globs []string) {
	if len(globs) == 0 {
		return
	}

	for name := range s.samples {
		for _, g := range globs {
			matched, err := path.Match(g, name)
			if err == nil && matched {
				delete(s.samples, name)

				break
			}
		}
	}
}

// Flatten folds the per-report-type metrics of every sample into one flat
// metric map. Report types are applied in the given order, so a metric
// present in a later type overwrites the same metric from an earlier one.
// The priority order is an explicit, documented property of each module's
// pattern tables, not an artifact of file processing order.
func (s *Store) Flatten(priority ...string) map[string]Metrics {
	flat := make(map[string]Metrics, len(s.samples))

	for name, byType := range s.samples {
		merged := make(Metrics)

		for _, reportType := range priority {
			for k, v := range byType[reportType] {
				merged[k] = v
			}
		}

		flat[name] = merged
	}

	return flat
}

// CleanSampleName strips known filename cruft from a sample identifier by
// cutting at the first occurrence of each suffix, in order. The same suffix
// list must be used for every report type contributing to a sample, or
// merges silently fragment into duplicate entries.
func CleanSampleName(name string, exts []string) string {
	for _, ext := range exts {
		if cut, _, ok := strings.Cut(name, ext); ok {
			name = cut
		}
	}

	return name
}
