package risk

import (
	"math"
	"testing"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/payload"
	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stressData(t *testing.T) *payload.RegimeData {
	t.Helper()
	snap, err := payload.NewSnapshot(testingpkg.NewPayloadFixture(), "test", testTime)
	require.NoError(t, err)
	data, err := snap.Regime(domain.RegimeStress)
	require.NoError(t, err)
	return data
}

func TestCheckOverride(t *testing.T) {
	data := stressData(t)

	tests := []struct {
		name    string
		w       []float64
		wantErr error
	}{
		{"matching length", []float64{0.2, 0.2, 0.2, 0.2, 0.2}, nil},
		{"zeros allowed", []float64{0, 0, 0, 0, 0}, nil},
		{"short", []float64{0.5, 0.5}, ErrWeightDimension},
		{"long", []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.5}, ErrWeightDimension},
		{"nan", []float64{0.2, math.NaN(), 0.2, 0.2, 0.2}, ErrInvalidWeight},
		{"inf", []float64{0.2, 0.2, math.Inf(1), 0.2, 0.2}, ErrInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOverride(data, tt.w)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyPatch(t *testing.T) {
	data := stressData(t)

	w, err := ApplyPatch(data, nil, map[string]float64{"BTC": 0.5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.30, 0.25, 0.20, 0.15, 0.5}, w, 1e-12)

	base := []float64{1, 1, 1, 1, 1}
	w, err = ApplyPatch(data, base, map[string]float64{"SPY": 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 1, 1, 1}, w)
	assert.Equal(t, 1.0, base[0], "base is not modified")

	_, err = ApplyPatch(data, nil, map[string]float64{"GLD": 0.1})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = ApplyPatch(data, nil, map[string]float64{"SPY": math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, err = ApplyPatch(data, []float64{1}, nil)
	assert.ErrorIs(t, err, ErrWeightDimension)
}
