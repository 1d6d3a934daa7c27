package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankPairs_FiveAssetsTenUniquePairs(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}
	m := [][]float64{
		{1.0, 0.2, -0.7, 0.1, 0.0},
		{0.2, 1.0, 0.5, -0.9, 0.3},
		{-0.7, 0.5, 1.0, 0.4, 0.6},
		{0.1, -0.9, 0.4, 1.0, -0.2},
		{0.0, 0.3, 0.6, -0.2, 1.0},
	}

	pairs := RankPairs(symbols, m, 0)
	require.Len(t, pairs, 10)

	seen := make(map[[2]string]bool)
	for _, p := range pairs {
		assert.NotEqual(t, p.A, p.B, "no self pairs")
		key := [2]string{p.A, p.B}
		if p.B < p.A {
			key = [2]string{p.B, p.A}
		}
		assert.False(t, seen[key], "duplicate pair %v", key)
		seen[key] = true
		assert.LessOrEqual(t, math.Abs(p.Value), 1.0)
	}

	assert.Equal(t, Pair{A: "B", B: "D", Value: -0.9}, pairs[0])
	assert.Equal(t, Pair{A: "A", B: "C", Value: -0.7}, pairs[1])
	for i := 1; i < len(pairs); i++ {
		assert.GreaterOrEqual(t, math.Abs(pairs[i-1].Value), math.Abs(pairs[i].Value))
	}
}

func TestRankPairs_TopK(t *testing.T) {
	symbols := []string{"A", "B", "C", "D"}
	m := [][]float64{
		{1, 0.1, 0.2, 0.3},
		{0.1, 1, 0.4, 0.5},
		{0.2, 0.4, 1, 0.6},
		{0.3, 0.5, 0.6, 1},
	}

	pairs := RankPairs(symbols, m, 2)
	require.Len(t, pairs, 2)
	assert.Equal(t, "C", pairs[0].A)
	assert.Equal(t, "D", pairs[0].B)

	assert.Len(t, RankPairs(symbols, m, 100), 6)
}

func TestRankPairs_AsymmetricNoiseStillOncePerPair(t *testing.T) {
	symbols := []string{"A", "B"}
	m := [][]float64{
		{1, 0.5},
		{0.5000001, 1},
	}

	pairs := RankPairs(symbols, m, 0)
	require.Len(t, pairs, 1)
	assert.Equal(t, 0.5, pairs[0].Value, "upper triangle is read")
}

func TestRankPairs_Degenerate(t *testing.T) {
	assert.Empty(t, RankPairs(nil, nil, 12))
	assert.Empty(t, RankPairs([]string{"A"}, [][]float64{{1}}, 12))

	pairs := RankPairs([]string{"A", "B", "C"}, [][]float64{{1}}, 0)
	require.Len(t, pairs, 3)
	for _, p := range pairs {
		assert.Equal(t, 0.0, p.Value, "missing entries read as zero")
	}
}
