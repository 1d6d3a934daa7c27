package risk

import (
	"math"
	"sort"
)

// Pair is one unordered asset pair and its matrix value.
type Pair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Value float64 `json:"value"`
}

// RankPairs enumerates each unordered pair (i < j) once, reading the upper
// triangle m[i][j] (missing entries are 0), and ranks by |value| descending.
// topK <= 0 returns every pair.
func RankPairs(symbols []string, m [][]float64, topK int) []Pair {
	n := len(symbols)
	if n < 2 {
		return []Pair{}
	}

	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var v float64
			if i < len(m) && j < len(m[i]) {
				v = m[i][j]
			}
			pairs = append(pairs, Pair{A: symbols[i], B: symbols[j], Value: v})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Value) > math.Abs(pairs[j].Value)
	})

	if topK > 0 && topK < len(pairs) {
		pairs = pairs[:topK]
	}
	return pairs
}
