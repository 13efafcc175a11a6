package ingest_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/qcfang/internal/ingest"
)

var testTable = ingest.Table{
	{Metric: "total_reads", Re: regexp.MustCompile(`(?m)^Sequences analysed in total:\s+(\d+)$`)},
	{Metric: "meth_cpg", Re: regexp.MustCompile(`(?m)^Total methylated C's in CpG context:\s+(\d+)`)},
	{Metric: "percent_cpg", Re: regexp.MustCompile(`(?m)^C methylated in CpG context:\s+([\d\.]+)%`)},
}

func TestExtractMatchesUnderSurroundingNoise(t *testing.T) {
	t.Parallel()

	text := "Some tool banner v1.2\n" +
		"Sequences analysed in total:\t4891\n" +
		"irrelevant line with numbers 123\n" +
		"Total methylated C's in CpG context:\t120\n" +
		"C methylated in CpG context:\t24.0%\n" +
		"trailing notes\n"

	got := testTable.Extract(text)

	assert.Equal(t, 4891.0, got["total_reads"])
	assert.Equal(t, 120.0, got["meth_cpg"])
	assert.InDelta(t, 24.0, got["percent_cpg"], 1e-9)
}

func TestExtractOmitsUnmatchedKeys(t *testing.T) {
	t.Parallel()

	got := testTable.Extract("Total methylated C's in CpG context:\t7\n")

	assert.Len(t, got, 1)

	_, present := got["total_reads"]
	assert.False(t, present, "unmatched metric must be absent, not zero")
}

func TestExtractSkipsMalformedCapture(t *testing.T) {
	t.Parallel()

	table := ingest.Table{
		{Metric: "broken", Re: regexp.MustCompile(`(?m)^value:\s+(\S+)$`)},
	}

	got := table.Extract("value: not-a-number\n")

	assert.Empty(t, got)
}

func TestExtractEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, testTable.Extract(""))
}
