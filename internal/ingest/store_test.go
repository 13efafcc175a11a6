package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
)

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	once := ingest.NewStore()
	once.Merge("s1", "alignment", ingest.Metrics{"total_reads": 100, "aligned_reads": 80})

	twice := ingest.NewStore()
	twice.Merge("s1", "alignment", ingest.Metrics{"total_reads": 100, "aligned_reads": 80})
	twice.Merge("s1", "alignment", ingest.Metrics{"total_reads": 100, "aligned_reads": 80})

	assert.Equal(t, once.Flatten("alignment"), twice.Flatten("alignment"))
}

func TestFlattenOverridePriority(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	// Dedup arrives first: flatten order, not processing order, decides.
	s.Merge("s1", "dedup", ingest.Metrics{"aligned_reads": 70})
	s.Merge("s1", "alignment", ingest.Metrics{"aligned_reads": 80, "total_reads": 100})

	flat := s.Flatten("alignment", "dedup")

	require.Contains(t, flat, "s1")
	assert.Equal(t, 70.0, flat["s1"]["aligned_reads"])
	assert.Equal(t, 100.0, flat["s1"]["total_reads"])
}

func TestErrNoSamples(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()

	assert.ErrorIs(t, s.Err(), ingest.ErrNoSamples)

	s.Merge("s1", "alignment", ingest.Metrics{"total_reads": 1})
	assert.NoError(t, s.Err())
}

func TestIgnore(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	s.Merge("control_1", "alignment", ingest.Metrics{"total_reads": 1})
	s.Merge("undetermined", "alignment", ingest.Metrics{"total_reads": 1})
	s.Merge("sample_2", "alignment", ingest.Metrics{"total_reads": 1})

	s.Ignore([]string{"undetermined", "control_*"})

	assert.Equal(t, []string{"sample_2"}, s.Samples())
}

func TestCleanSampleName(t *testing.T) {
	t.Parallel()

	exts := []string{".gz", ".fastq", ".fq", "_val_1", "_val_2"}

	tests := []struct {
		in   string
		want string
	}{
		{"SRR123_val_1.fq.gz", "SRR123"},
		{"sample.fastq.gz", "sample"},
		{"sample.fq", "sample"},
		{"plain_name", "plain_name"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ingest.CleanSampleName(tc.in, exts), tc.in)
	}
}

func TestReportAndHas(t *testing.T) {
	t.Parallel()

	s := ingest.NewStore()
	s.Merge("s1", "methextract", ingest.Metrics{"me_total_c": 5000})

	assert.True(t, s.Has("s1", "methextract"))
	assert.False(t, s.Has("s1", "alignment"))
	assert.False(t, s.Has("s2", "methextract"))
	assert.Equal(t, 5000.0, s.Report("s1", "methextract")["me_total_c"])
	assert.Nil(t, s.Report("s2", "methextract"))
}
