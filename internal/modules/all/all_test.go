package all

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryContainsEveryModule(t *testing.T) {
	t.Parallel()

	reg, err := Registry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bismark",
		"starsolo",
		"cellranger",
		"cellranger_count",
		"dragen_time",
		"qiime2",
		"parsebio",
		"unitas",
	}, reg.IDs())
}
