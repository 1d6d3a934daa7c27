package payload

import (
	"testing"
	"time"

	"github.com/aristath/prisk/internal/domain"
	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_IndexesRegimes(t *testing.T) {
	p := testingpkg.NewPayloadFixture()
	snap, err := NewSnapshot(p, "file", time.Now())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Len(t, snap.Checksum, 64)
	assert.Equal(t, "2025-01-31", snap.AsOf())

	stress, err := snap.Regime(domain.RegimeStress)
	require.NoError(t, err)
	assert.Equal(t, testingpkg.StressSymbols, stress.Symbols())
	assert.Equal(t, 5, stress.Len())

	i, ok := stress.Cov.Lookup("BTC")
	assert.True(t, ok)
	assert.Equal(t, 4, i)
	assert.False(t, stress.Assets.Contains("GLD"))

	weights := stress.BaselineWeights()
	assert.InDeltaSlice(t, []float64{0.30, 0.25, 0.20, 0.15, 0.10}, weights, 1e-12)

	weights[0] = 99
	assert.InDelta(t, 0.30, stress.BaselineWeights()[0], 1e-12, "baseline is copied out")

	_, err = snap.Regime(domain.Regime("crisis"))
	assert.ErrorIs(t, err, domain.ErrUnknownRegime)
}

func TestNewSnapshot_UniqueIDsSameChecksum(t *testing.T) {
	p := testingpkg.NewPayloadFixture()

	a, err := NewSnapshot(p, "file", time.Now())
	require.NoError(t, err)
	b, err := NewSnapshot(p, "file", time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Checksum, b.Checksum)
}
