package bismark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/config"
	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

const alignmentReport = `Bismark report for: sample_1.fastq.gz (version: v0.14.3)
Option '--directional' specified: alignments to complementary strands were ignored

Final Alignment report
======================
Sequences analysed in total:	1000
Number of alignments with a unique best hit:	800
Mapping efficiency:	80.0%
Sequences with no alignments under any condition:	150
Sequences did not map uniquely:	40
Sequences which were discarded because genomic sequence could not be extracted:	10

Final Cytosine Methylation Report
=================================
Total number of C's analysed:	20000

Total methylated C's in CpG context:	1200
Total methylated C's in CHG context:	300
Total methylated C's in CHH context:	400

Total unmethylated C's in CpG context:	2800
Total unmethylated C's in CHG context:	7000
Total unmethylated C's in CHH context:	8300

C methylated in CpG context:	30.0%
C methylated in CHG context:	4.1%
C methylated in CHH context:	4.6%
`

const dedupReport = `
Total number of alignments analysed in sample_1.fastq.gz_bismark_bt2.bam:	790
Total number duplicated alignments removed:	200 (25.3%)
Duplicated alignments were found at:	180 different position(s)

Total count of deduplicated leftover sequences:	600 (75.0% of total)
`

const splittingReport = `sample_1.fastq.gz_bismark_bt2.bam

Parameters used to extract methylation information:
Bismark Extractor Version: v0.14.3

Processed 600 lines in total
Total number of methylation call strings processed: 600

Final Cytosine Methylation Report
=================================
Total number of C's analysed:	15000

Total methylated C's in CpG context:	120
Total methylated C's in CHG context:	60
Total methylated C's in CHH context:	80

Total C to T conversions in CpG context:	380
Total C to T conversions in CHG context:	5000
Total C to T conversions in CHH context:	9360
`

// splittingReportWithPercent carries an explicit percentage line, which must
// win over the recomputed count ratio.
const splittingReportWithPercent = splittingReport + `
C methylated in CpG context:	45.0%
`

func newRun(t *testing.T, files ...discovery.File) *report.Run {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	return report.NewRun(cfg, discovery.NewIndex(files...), nil)
}

func alignmentFile() discovery.File {
	return discovery.File{Name: "sample_1_PE_report.txt", Path: "a/sample_1_PE_report.txt", Content: []byte(alignmentReport)}
}

func dedupFile() discovery.File {
	return discovery.File{Name: "sample_1.deduplication_report.txt", Path: "a/sample_1.deduplication_report.txt", Content: []byte(dedupReport)}
}

func splittingFile(content string) discovery.File {
	return discovery.File{Name: "sample_1_splitting_report.txt", Path: "a/sample_1_splitting_report.txt", Content: []byte(content)}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()

	run := newRun(t)

	err := New().Run(run)
	require.ErrorIs(t, err, ingest.ErrNoSamples)
	assert.Empty(t, run.Sections())
}

func TestRunAlignmentOnly(t *testing.T) {
	t.Parallel()

	run := newRun(t, alignmentFile())

	require.NoError(t, New().Run(run))

	gs := run.GeneralStats()
	require.NotNil(t, gs)

	m := gs.Rows["sample_1"]
	assert.InDelta(t, 80.0, m["percent_aligned"], 1e-9)
	assert.InDelta(t, 20000.0, m["total_c"], 1e-9)
	// With no methylation extraction report, the alignment percentage line
	// is the methylation source.
	assert.InDelta(t, 30.0, m["percent_cpg_meth"], 1e-9)

	require.Len(t, run.Sections(), 2)
	assert.Equal(t, "Alignment Rates", run.Sections()[0].Title)
	assert.Contains(t, run.Sections()[1].Helptext, "alignment report")
}

func TestRunDedupOverridesAlignedReads(t *testing.T) {
	t.Parallel()

	run := newRun(t, dedupFile(), alignmentFile())

	require.NoError(t, New().Run(run))

	m := run.GeneralStats().Rows["sample_1"]
	// Dedup re-reports the analysed alignments; its count wins over the
	// alignment report's 800 regardless of file discovery order.
	assert.InDelta(t, 790.0, m["aligned_reads"], 1e-9)
	assert.InDelta(t, 25.3, m["dup_reads_percent"], 1e-9)
	assert.InDelta(t, 600.0, m["dedup_reads"], 1e-9)
	assert.InDelta(t, 79.0, m["percent_aligned"], 1e-9)
}

func TestRunMethylationCountRatioFallback(t *testing.T) {
	t.Parallel()

	run := newRun(t, alignmentFile(), splittingFile(splittingReport))

	require.NoError(t, New().Run(run))

	m := run.GeneralStats().Rows["sample_1"]
	// No percentage line in the splitting report: 120/(120+380) = 24.0%.
	assert.InDelta(t, 24.0, m["percent_cpg_meth"], 1e-9)
	assert.InDelta(t, 15000.0, m["total_c"], 1e-9)
}

func TestRunMethylationPercentLinePreferred(t *testing.T) {
	t.Parallel()

	run := newRun(t, alignmentFile(), splittingFile(splittingReportWithPercent))

	require.NoError(t, New().Run(run))

	m := run.GeneralStats().Rows["sample_1"]
	// The extraction report's own 45.0% beats both the recomputed ratio
	// and the alignment report's 30.0%.
	assert.InDelta(t, 45.0, m["percent_cpg_meth"], 1e-9)
}

func TestRunSampleNamesMergeAcrossReports(t *testing.T) {
	t.Parallel()

	run := newRun(t, alignmentFile(), dedupFile(), splittingFile(splittingReport))

	require.NoError(t, New().Run(run))

	gs := run.GeneralStats()
	require.Len(t, gs.Rows, 1, "all three reports must merge into one sample")
	assert.Contains(t, gs.Rows, "sample_1")
}

func TestRunIgnoresSamples(t *testing.T) {
	t.Parallel()

	run := newRun(t, alignmentFile())
	run.Config.Samples.Ignore = []string{"sample_*"}

	err := New().Run(run)
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestRunUnrecognisedContentSkipped(t *testing.T) {
	t.Parallel()

	bogus := discovery.File{Name: "x_PE_report.txt", Path: "a/x_PE_report.txt", Content: []byte("not a report")}
	run := newRun(t, bogus)

	err := New().Run(run)
	require.ErrorIs(t, err, ingest.ErrNoSamples)
}

func TestExtractIgnoresSurroundingNoise(t *testing.T) {
	t.Parallel()

	got := alignmentPatterns.Extract(alignmentReport)

	assert.InDelta(t, 1000.0, got["total_reads"], 1e-9)
	assert.InDelta(t, 800.0, got["aligned_reads"], 1e-9)
	_, present := got["dup_reads"]
	assert.False(t, present, "keys without a matching line must stay absent")
}
