package qiime2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const dada2TSV = "sample-id\tinput\tfiltered\tdenoised\tmerged\tnon-chimeric\n" +
	"patient1_V3V4\t1000\t900\t850\t800\t780\n" +
	"patient1_V4\t500\t450\t440\t430\t425\n" +
	"patient2_V3V4\t2000\t1500\t1400\t1300\t1250\n"

const taxonomyCSV = "index,D_0__Bacteria;D_1__Firmicutes,D_0__Bacteria;D_1__Bacteroidetes,extra_meta\n" +
	"patient1,600,180,x\n" +
	"patient2,900,350,y\n"

const ordinationTXT = "Eigvals\t2\n0.5\t0.3\n\n" +
	"Proportion explained\t2\n0.6\t0.2\n\n" +
	"Site\t2\t2\n" +
	"patient1\t0.25\t-0.10\n" +
	"patient2\t-0.30\t0.40\n" +
	"\n" +
	"Biplot\t0\t0\n"

func newRun(t *testing.T, files ...discovery.File) *report.Run {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	return report.NewRun(cfg, discovery.NewIndex(files...), nil)
}

func TestParseDada2StatsIncrementalCounts(t *testing.T) {
	t.Parallel()

	parsed, err := parseDada2Stats(dada2TSV)
	require.NoError(t, err)
	require.Contains(t, parsed, "V3V4")
	require.Contains(t, parsed, "V4")

	m := parsed["V3V4"]["patient1"]
	// Cumulative 1000/900/850/800/780 becomes per-stage losses.
	assert.InDelta(t, 100.0, m["filtered"], 1e-9)
	assert.InDelta(t, 50.0, m["denoised"], 1e-9)
	assert.InDelta(t, 50.0, m["merged"], 1e-9)
	assert.InDelta(t, 20.0, m["non-chimeric"], 1e-9)
	assert.InDelta(t, 780.0, m["passed"], 1e-9)
}

func TestParseDada2StatsMissingColumn(t *testing.T) {
	t.Parallel()

	_, err := parseDada2Stats("sample-id\tinput\tfiltered\ns1_V4\t10\t9\n")
	require.Error(t, err)
}

func TestCollectDada2AccumulatesTotal(t *testing.T) {
	t.Parallel()

	run := newRun(t, discovery.File{
		Name:    "dada2_stats.tsv",
		Path:    "q2/dada2_stats.tsv",
		Content: []byte(dada2TSV),
	})

	seen := map[string]bool{}
	regions := New().collectDada2(run, seen)

	require.Contains(t, regions, totalRegion)
	// patient1 appears in two regions, so Total sums them.
	assert.InDelta(t, 780.0+425.0, regions[totalRegion]["patient1"]["passed"], 1e-9)
	assert.InDelta(t, 1250.0, regions[totalRegion]["patient2"]["passed"], 1e-9)
	assert.True(t, seen["patient1"])
}

func TestRegionOrderTotalFirst(t *testing.T) {
	t.Parallel()

	regions := map[string]map[string]ingest.Metrics{
		"V4":        {},
		"V3V4":      {},
		totalRegion: {},
	}

	assert.Equal(t, []string{totalRegion, "V3V4", "V4"}, regionOrder(regions))
}

func TestRegionOrderSingleRegionOmitsTotal(t *testing.T) {
	t.Parallel()

	regions := map[string]map[string]ingest.Metrics{
		"V4":        {},
		totalRegion: {},
	}

	assert.Equal(t, []string{"V4"}, regionOrder(regions))
}

func TestParseTaxonomyExportSilva(t *testing.T) {
	t.Parallel()

	bySample, db, err := parseTaxonomyExport(taxonomyCSV)
	require.NoError(t, err)
	assert.Equal(t, "silva", db)

	require.Contains(t, bySample, "patient1")
	assert.InDelta(t, 600.0, bySample["patient1"]["Firmicutes"], 1e-9)
	assert.InDelta(t, 350.0, bySample["patient2"]["Bacteroidetes"], 1e-9)
	// Metadata columns without taxon labels are not counted.
	assert.Len(t, bySample["patient1"], 2)
}

func TestParseOrdinationSiteBlock(t *testing.T) {
	t.Parallel()

	scores, err := parseOrdination(ordinationTXT)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.25, scores["patient1"].X, 1e-9)
	assert.InDelta(t, 0.40, scores["patient2"].Y, 1e-9)
}

func TestRunAllSections(t *testing.T) {
	t.Parallel()

	run := newRun(t,
		discovery.File{Name: "dada2_stats.tsv", Path: "q2/dada2_stats.tsv", Content: []byte(dada2TSV)},
		discovery.File{Name: "level-2.csv", Path: "q2/level-2.csv", Content: []byte(taxonomyCSV)},
		discovery.File{Name: "ordination.txt", Path: "q2/ordination.txt", Content: []byte(ordinationTXT)},
	)

	require.NoError(t, New().Run(run))

	require.Len(t, run.Sections(), 3)
	assert.Equal(t, "Dada2 Filtered Reads", run.Sections()[0].Title)
	assert.Equal(t, "Taxonomic Classification", run.Sections()[1].Title)
	assert.Equal(t, "Sample Ordination", run.Sections()[2].Title)

	gs := run.GeneralStats()
	require.NotNil(t, gs)
	assert.InDelta(t, 1205.0, gs.Rows["patient1"]["passed"], 1e-9)
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()

	err := New().Run(newRun(t))
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}
