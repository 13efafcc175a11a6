package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/qcfang/internal/report"
)

type stubModule struct {
	id string
}

func (m stubModule) Descriptor() Descriptor { return Descriptor{ID: m.id, Name: m.id} }

func (m stubModule) Run(_ *report.Run) error { return nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	reg, err := NewRegistry(stubModule{"bismark"}, stubModule{"starsolo"}, stubModule{"cellranger"})
	require.NoError(t, err)

	return reg
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(stubModule{"bismark"}, stubModule{"bismark"})
	require.ErrorIs(t, err, ErrDuplicateModuleID)
}

func TestSelectAllByDefault(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	mods, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, mods, 3)
}

func TestSelectByID(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	mods, err := reg.Select([]string{"starsolo"})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "starsolo", mods[0].Descriptor().ID)
}

func TestSelectGlobPreservesOrderAndDedupes(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	mods, err := reg.Select([]string{"cellranger", "*"})
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.Equal(t, "cellranger", mods[0].Descriptor().ID)
}

func TestSelectUnknownID(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	_, err := reg.Select([]string{"nope"})
	require.ErrorIs(t, err, ErrUnknownModuleID)
}

func TestSelectUnmatchedGlob(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	_, err := reg.Select([]string{"zz*"})
	require.ErrorIs(t, err, ErrUnknownModuleID)
}
