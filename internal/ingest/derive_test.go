package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
)

var methField = ingest.Field{
	Metric: "percent_cpg_meth",
	Candidates: []ingest.Candidate{
		{Source: "methextract", Compute: ingest.PercentOfSum("me_meth_cpg", "me_unmeth_cpg")},
		{Source: "alignment", Compute: ingest.PercentOfSum("aln_meth_cpg", "aln_unmeth_cpg")},
	},
}

func TestDeriveMethylationFromCounts(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	s.Merge("s1", "alignment", ingest.Metrics{"aln_meth_cpg": 120, "aln_unmeth_cpg": 380})

	flat := ingest.Derive(s, []string{"alignment", "methextract"}, []ingest.Field{methField})

	require.Contains(t, flat, "s1")
	assert.InDelta(t, 24.0, flat["s1"]["percent_cpg_meth"], 1e-9)
}

func TestDerivePrefersFirstCandidate(t *testing.T) {
	t.Parallel()

	field := ingest.Field{
		Metric: "percent_cpg_meth",
		Candidates: []ingest.Candidate{
			{Source: "methextract", Compute: ingest.Copy("me_percent_cpg_meth")},
			{Source: "alignment", Compute: ingest.Copy("aln_percent_cpg_meth")},
		},
	}

	s := ingest.NewStore()
	// The fallback source arrives first; priority must still win.
	s.Merge("s1", "alignment", ingest.Metrics{"aln_percent_cpg_meth": 30.0})
	s.Merge("s1", "methextract", ingest.Metrics{"me_percent_cpg_meth": 45.0})

	flat := ingest.Derive(s, []string{"alignment", "methextract"}, []ingest.Field{field})

	assert.InDelta(t, 45.0, flat["s1"]["percent_cpg_meth"], 1e-9)
}

func TestDeriveOmitsWhenNoSource(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	s.Merge("s1", "dedup", ingest.Metrics{"dup_reads": 10})

	flat := ingest.Derive(s, []string{"dedup", "alignment", "methextract"}, []ingest.Field{methField})

	_, present := flat["s1"]["percent_cpg_meth"]
	assert.False(t, present, "derived field must be omitted, never defaulted")
}

func TestDeriveChosenSourceMissingValueDoesNotFallBack(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	// The preferred report type exists but lacks the needed counts; the
	// candidate list stops at the chosen source instead of silently mixing
	// report types.
	s.Merge("s1", "methextract", ingest.Metrics{"me_total_c": 500})
	s.Merge("s1", "alignment", ingest.Metrics{"aln_meth_cpg": 120, "aln_unmeth_cpg": 380})

	flat := ingest.Derive(s, []string{"alignment", "methextract"}, []ingest.Field{methField})

	_, present := flat["s1"]["percent_cpg_meth"]
	assert.False(t, present)
}

func TestDeriveIdempotent(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	s.Merge("s1", "alignment", ingest.Metrics{
		"aln_meth_cpg": 120, "aln_unmeth_cpg": 380, "total_reads": 100, "aligned_reads": 80,
	})

	fields := []ingest.Field{
		methField,
		{
			Metric: "percent_aligned",
			Candidates: []ingest.Candidate{
				{Source: "alignment", Compute: ingest.Percent("aligned_reads", "total_reads")},
			},
		},
	}

	priority := []string{"alignment", "dedup", "methextract"}

	first := ingest.Derive(s, priority, fields)
	second := ingest.Derive(s, priority, fields)

	assert.Equal(t, first, second)
	assert.InDelta(t, 80.0, first["s1"]["percent_aligned"], 1e-9)
}

func TestRatioDivisionByZero(t *testing.T) {
	t.Parallel()

	_, ok := ingest.Ratio("a", "b")(ingest.Metrics{"a": 1, "b": 0})
	assert.False(t, ok)
}

func TestFirstOf(t *testing.T) {
	t.Parallel()

	m := ingest.Metrics{"second": 2}

	v, ok := ingest.FirstOf("first", "second")(m)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = ingest.FirstOf("missing")(m)
	assert.False(t, ok)
}
