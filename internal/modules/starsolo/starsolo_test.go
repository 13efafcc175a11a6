package starsolo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const summaryCSV = `Number of Reads,350000000
Reads With Valid Barcodes,0.976
Sequencing Saturation,0.744
Q30 Bases in CB+UMI,0.972
Q30 Bases in RNA read,0.935
Reads Mapped to Genome: Unique+Multiple,0.957
Reads Mapped to Transcriptome: Unique+Multipe Genes,0.633
Estimated Number of Cells,9734
Mean Reads per Cell,22769
Median UMI per Cell,12355
Median Genes per Cell,3861
Total Genes Detected,24567
`

func newRun(t *testing.T, files ...discovery.File) *report.Run {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	return report.NewRun(cfg, discovery.NewIndex(files...), nil)
}

func TestRunParsesSummary(t *testing.T) {
	t.Parallel()

	run := newRun(t, discovery.File{
		Name:    "pbmc_Summary.csv",
		Path:    "solo/pbmc_Summary.csv",
		Content: []byte(summaryCSV),
	})

	require.NoError(t, New().Run(run))

	gs := run.GeneralStats()
	require.NotNil(t, gs)
	require.Contains(t, gs.Rows, "pbmc")

	m := gs.Rows["pbmc"]
	assert.InDelta(t, 22769.0, m["Mean Reads per Cell"], 1e-9)
	assert.InDelta(t, 0.744, m["Sequencing Saturation"], 1e-9)

	require.Len(t, run.Sections(), 1)
	assert.Equal(t, "STARsolo Summary", run.Sections()[0].Title)
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()

	err := New().Run(newRun(t))
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestRunUnparseableSkipped(t *testing.T) {
	t.Parallel()

	run := newRun(t, discovery.File{
		Name:    "bad_Summary.csv",
		Path:    "solo/bad_Summary.csv",
		Content: []byte("tool version,v2.7\nno numbers here,at all\n"),
	})

	err := New().Run(run)
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestFractionColumnsScaleOnceAtBoundary(t *testing.T) {
	t.Parallel()

	run := newRun(t)
	cols := New().columns(run)

	var saturation report.Column

	for _, c := range cols {
		if c.Key == "Sequencing Saturation" {
			saturation = c
		}
	}

	require.NotNil(t, saturation.Modify)

	// Stored as a 0-1 fraction; the column boundary renders 74.4%.
	cell, ok := saturation.Cell(ingest.Metrics{"Sequencing Saturation": 0.744})
	require.True(t, ok)
	assert.Equal(t, "74.4%", cell)
}

func TestParseSummarySkipsNonNumericRows(t *testing.T) {
	t.Parallel()

	m, err := parseSummary("Estimated Number of Cells,9734\nPipeline Version,cellranger-like\n")
	require.NoError(t, err)

	assert.Len(t, m, 1)
	assert.InDelta(t, 9734.0, m["Estimated Number of Cells"], 1e-9)
}
