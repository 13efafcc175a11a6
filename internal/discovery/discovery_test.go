package discovery_test

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/discovery"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanAndFind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "sample1_PE_report.txt", "Bismark report for: sample1.fq.gz\n")
	writeFile(t, filepath.Join(root, "nested"), "sample2_Summary.csv", "Number of Reads,100\n")
	writeFile(t, filepath.Join(root, ".snakemake"), "hidden_PE_report.txt", "ignored\n")

	ix, err := discovery.Scan(root, discovery.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	reports := ix.Find(discovery.Pattern{Suffix: "_PE_report.txt"})
	require.Len(t, reports, 1)
	assert.Equal(t, "sample1_PE_report.txt", reports[0].Name)
	assert.Contains(t, reports[0].Text(), "Bismark report for")

	csvs := ix.Find(discovery.Pattern{Re: regexp.MustCompile(`_Summary\.csv$`)})
	require.Len(t, csvs, 1)
	assert.Equal(t, filepath.Join(root, "nested"), csvs[0].Root)
}

func TestScanDecompressesGzip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var buf bytes.Buffer

	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte("sample3_trimmed\nTotal number of C's analysed:\t500\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	require.NoError(t, os.WriteFile(filepath.Join(root, "sample3_splitting_report.txt.gz"), buf.Bytes(), 0o644))

	ix, err := discovery.Scan(root, discovery.Options{})
	require.NoError(t, err)

	files := ix.Find(discovery.Pattern{Suffix: "_splitting_report.txt"})
	require.Len(t, files, 1)
	assert.Equal(t, "sample3_splitting_report.txt", files[0].Name)
	assert.Contains(t, files[0].Text(), "Total number of C's analysed")
}

func TestScanEmptyDirectory(t *testing.T) {
	t.Parallel()

	ix, err := discovery.Scan(t.TempDir(), discovery.Options{})
	require.NoError(t, err)
	assert.Zero(t, ix.Len())
	assert.Empty(t, ix.Find(discovery.Pattern{Suffix: ".txt"}))
}

func TestScanRejectsNonDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "file.txt", "x")

	_, err := discovery.Scan(filepath.Join(root, "file.txt"), discovery.Options{})
	assert.ErrorIs(t, err, discovery.ErrRootNotDirectory)
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "big.txt", "0123456789")
	writeFile(t, root, "small.txt", "ok")

	ix, err := discovery.Scan(root, discovery.Options{MaxFileSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
}

func TestPatternMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern discovery.Pattern
		file    string
		want    bool
	}{
		{"exact hit", discovery.Pattern{Exact: "unitas.tRNA.info"}, "unitas.tRNA.info", true},
		{"exact miss", discovery.Pattern{Exact: "unitas.tRNA.info"}, "unitas.rRNA.info", false},
		{"suffix", discovery.Pattern{Suffix: ".deduplication_report.txt"}, "s.deduplication_report.txt", true},
		{"contains", discovery.Pattern{Contains: "time_metrics"}, "s.time_metrics.csv", true},
		{"combined", discovery.Pattern{Suffix: ".csv", Contains: "level-"}, "level-2.csv", true},
		{"combined miss", discovery.Pattern{Suffix: ".csv", Contains: "level-"}, "level-2.tsv", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.pattern.Match(tc.file))
		})
	}
}
