package cellrangercount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const metricsCSV = `Estimated Number of Cells,Mean Reads per Cell,Median Genes per Cell,Number of Reads,Valid Barcodes,Sequencing Saturation,Q30 Bases in Barcode,Q30 Bases in RNA Read,Reads Mapped to Genome,Reads Mapped Confidently to Genome,Reads Mapped Confidently to Intergenic Regions,Reads Mapped Confidently to Intronic Regions,Reads Mapped Confidently to Exonic Regions,Reads Mapped Confidently to Transcriptome,Median UMI Counts per Cell,Total Genes Detected
"1,234","54,321","2,101","67,000,000",97.4%,45.2%,96.1%,93.3%,95.6%,91.2%,4.1%,28.3%,58.8%,55.1%,"6,500","21,340"
`

func newRun(t *testing.T, files ...discovery.File) *report.Run {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	return report.NewRun(cfg, discovery.NewIndex(files...), nil)
}

func TestRunParsesMetricsSummary(t *testing.T) {
	t.Parallel()

	run := newRun(t, discovery.File{
		Name:    "pbmc.metrics_summary.csv",
		Path:    "count/pbmc.metrics_summary.csv",
		Content: []byte(metricsCSV),
	})

	require.NoError(t, New().Run(run))

	gs := run.GeneralStats()
	require.NotNil(t, gs)
	require.Contains(t, gs.Rows, "pbmc")

	m := gs.Rows["pbmc"]
	assert.InDelta(t, 1234.0, m["Estimated Number of Cells"], 1e-9)
	assert.InDelta(t, 45.2, m["Sequencing Saturation"], 1e-9)
	assert.InDelta(t, 91.2, m["Reads Mapped Confidently to Genome"], 1e-9)

	require.Len(t, run.Sections(), 2)
	assert.Equal(t, "Confidently Mapped Reads", run.Sections()[1].Title)
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()

	err := New().Run(newRun(t))
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestRunHeaderOnlySkipped(t *testing.T) {
	t.Parallel()

	run := newRun(t, discovery.File{
		Name:    "empty.metrics_summary.csv",
		Path:    "count/empty.metrics_summary.csv",
		Content: []byte("Estimated Number of Cells,Number of Reads\n"),
	})

	err := New().Run(run)
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"97.4%", 97.4, true},
		{"67,000,000", 67000000, true},
		{"42", 42, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tc := range tests {
		got, ok := parseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)

		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}
