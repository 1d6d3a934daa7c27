// Package formulas holds the pure numerical routines behind the risk views.
// Nothing in here logs, allocates shared state, or mutates its inputs.
package formulas

import "gonum.org/v1/gonum/floats"

// NormalizeWeights rescales weights so they sum to 1.
//
// A non-positive sum yields the all-zero vector of the same length rather than
// an error; downstream decomposition treats it as a zero-volatility portfolio.
func NormalizeWeights(weights []float64) []float64 {
	out := make([]float64, len(weights))
	sum := floats.Sum(weights)
	if sum <= 0 {
		return out
	}
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}
