package risk

import (
	"sort"

	"github.com/aristath/prisk/internal/domain"
)

// Selection is the top-risk slice of a universe and its correlation
// submatrix. Row/column i of Matrix is Symbols[i], the i-th highest risk share.
type Selection struct {
	Symbols []string             `json:"symbols"`
	Assets  []domain.AssetMetric `json:"assets"`
	Matrix  [][]float64          `json:"matrix"`
}

// SelectTopAssets takes the topN assets by risk share (stable on ties) and
// restricts corr to them in rank order. topN beyond the universe returns every
// asset; topN <= 0 or an empty universe returns an empty selection. Assets
// missing from corr are skipped.
func SelectTopAssets(assets []domain.AssetMetric, corr domain.LabeledMatrix, topN int) Selection {
	return selectTopAssets(assets, corr, domain.NewSymbolIndex(corr.Symbols), topN)
}

// selectTopAssets is SelectTopAssets with a prebuilt corr index.
func selectTopAssets(assets []domain.AssetMetric, corr domain.LabeledMatrix, idx *domain.SymbolIndex, topN int) Selection {
	sel := Selection{
		Symbols: []string{},
		Assets:  []domain.AssetMetric{},
		Matrix:  [][]float64{},
	}
	if topN <= 0 || len(assets) == 0 {
		return sel
	}

	ranked := append([]domain.AssetMetric(nil), assets...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RiskShare > ranked[j].RiskShare
	})

	positions := make([]int, 0, topN)
	for _, a := range ranked {
		if len(positions) == topN {
			break
		}
		pos, ok := idx.Lookup(a.Symbol)
		if !ok {
			continue
		}
		positions = append(positions, pos)
		sel.Symbols = append(sel.Symbols, a.Symbol)
		sel.Assets = append(sel.Assets, a)
	}

	sel.Matrix = make([][]float64, len(positions))
	for i, pi := range positions {
		row := make([]float64, len(positions))
		for j, pj := range positions {
			row[j] = corr.At(pi, pj)
		}
		sel.Matrix[i] = row
	}

	return sel
}
