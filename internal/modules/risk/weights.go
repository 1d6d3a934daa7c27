package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/prisk/internal/modules/payload"
)

var (
	// ErrWeightDimension is returned when an override does not match the regime universe.
	ErrWeightDimension = errors.New("weight vector length does not match regime universe")
	// ErrUnknownSymbol is returned when a weight patch names a symbol outside the regime.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrInvalidWeight is returned for NaN or infinite weights.
	ErrInvalidWeight = errors.New("weight must be a finite number")
)

// CheckOverride verifies w can be used as weights for the regime.
func CheckOverride(data *payload.RegimeData, w []float64) error {
	if len(w) != data.Len() {
		return fmt.Errorf("%w: got %d, want %d", ErrWeightDimension, len(w), data.Len())
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: index %d", ErrInvalidWeight, i)
		}
	}
	return nil
}

// ApplyPatch returns a copy of base with the symbol-keyed weights written in
// through the regime's symbol index. base nil means the baseline weights.
func ApplyPatch(data *payload.RegimeData, base []float64, patch map[string]float64) ([]float64, error) {
	if base == nil {
		base = data.BaselineWeights()
	}
	if err := CheckOverride(data, base); err != nil {
		return nil, err
	}

	out := append([]float64(nil), base...)
	for sym, v := range patch {
		i, ok := data.Cov.Lookup(sym)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, sym)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidWeight, sym)
		}
		out[i] = v
	}
	return out, nil
}
