package ingest

const percentScale = 100

// Candidate is one possible source for a derived metric. Source names the
// report type that must be present for the sample; Compute produces the
// value from the sample's flattened metric map.
type Candidate struct {
	Source  string
	Compute func(m Metrics) (float64, bool)
}

// Field declares a derived metric with an ordered list of candidate
// sources. The first candidate whose source report type is present for a
// sample is used, even when a lower-priority source also carries the data.
// When no candidate applies, or the chosen Compute reports false, the field
// is omitted entirely rather than recorded as zero or NaN.
type Field struct {
	Metric     string
	Candidates []Candidate
}

// Derive flattens the store with the given report-type priority and adds
// every derivable field to the per-sample metric maps. The store itself is
// not mutated, so running Derive twice over an unchanged store yields
// identical output.
func Derive(s *Store, priority []string, fields []Field) map[string]Metrics {
	flat := s.Flatten(priority...)

	for sample, metrics := range flat {
		for _, f := range fields {
			for _, c := range f.Candidates {
				if !s.Has(sample, c.Source) {
					continue
				}

				if v, ok := c.Compute(metrics); ok {
					metrics[f.Metric] = v
				}

				break
			}
		}
	}

	return flat
}

// Ratio returns a compute func for num/den as a 0-1 fraction.
// Division by zero reports false.
func Ratio(num, den string) func(Metrics) (float64, bool) {
	return func(m Metrics) (float64, bool) {
		n, okN := m[num]
		d, okD := m[den]

		if !okN || !okD || d == 0 {
			return 0, false
		}

		return n / d, true
	}
}

// Percent returns a compute func for num/den scaled to the 0-100 range.
// The fraction is scaled exactly once, here at the presentation boundary.
func Percent(num, den string) func(Metrics) (float64, bool) {
	ratio := Ratio(num, den)

	return func(m Metrics) (float64, bool) {
		v, ok := ratio(m)
		if !ok {
			return 0, false
		}

		return v * percentScale, true
	}
}

// PercentOfSum returns a compute func for part/(part+rest) scaled to 0-100.
func PercentOfSum(part, rest string) func(Metrics) (float64, bool) {
	return func(m Metrics) (float64, bool) {
		p, okP := m[part]
		r, okR := m[rest]

		if !okP || !okR || p+r == 0 {
			return 0, false
		}

		return p / (p + r) * percentScale, true
	}
}

// Copy returns a compute func that forwards an existing metric unchanged.
func Copy(metric string) func(Metrics) (float64, bool) {
	return func(m Metrics) (float64, bool) {
		v, ok := m[metric]

		return v, ok
	}
}

// FirstOf returns a compute func that tries each metric in order and
// forwards the first one present.
func FirstOf(metrics ...string) func(Metrics) (float64, bool) {
	return func(m Metrics) (float64, bool) {
		for _, name := range metrics {
			if v, ok := m[name]; ok {
				return v, true
			}
		}

		return 0, false
	}
}
