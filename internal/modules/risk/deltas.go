// Package risk derives risk views from payload snapshots: regime deltas,
// focused correlation selections, ranked pairs and recomputed decompositions.
package risk

import (
	"math"
	"sort"

	"github.com/aristath/prisk/internal/domain"
)

// DeltaRow compares one asset across regimes. Deltas are stress minus normal.
type DeltaRow struct {
	Symbol          string  `json:"symbol"`
	NormalRiskShare float64 `json:"normalRiskShare"`
	StressRiskShare float64 `json:"stressRiskShare"`
	DRiskShare      float64 `json:"dRiskShare"`
	NormalMCR       float64 `json:"normalMcr"`
	StressMCR       float64 `json:"stressMcr"`
	DMCR            float64 `json:"dMcr"`
	Weight          float64 `json:"weight"`
}

// ComputeDeltas compares two metric sets over the union of their symbols.
// A symbol missing from one side counts as risk share 0 and MCR 0 there.
// Rows are ordered by |DRiskShare| descending; ties keep union order
// (normal symbols first, then stress-only symbols).
func ComputeDeltas(normal, stress []domain.AssetMetric) []DeltaRow {
	n := indexMetrics(normal)
	s := indexMetrics(stress)

	symbols := make([]string, 0, len(normal)+len(stress))
	seen := make(map[string]struct{}, len(normal)+len(stress))
	for _, list := range [][]domain.AssetMetric{normal, stress} {
		for _, a := range list {
			if _, ok := seen[a.Symbol]; ok {
				continue
			}
			seen[a.Symbol] = struct{}{}
			symbols = append(symbols, a.Symbol)
		}
	}

	rows := make([]DeltaRow, len(symbols))
	for i, sym := range symbols {
		na := n[sym]
		sa, inStress := s[sym]

		weight := na.Weight
		if inStress {
			weight = sa.Weight
		}

		rows[i] = DeltaRow{
			Symbol:          sym,
			NormalRiskShare: na.RiskShare,
			StressRiskShare: sa.RiskShare,
			DRiskShare:      sa.RiskShare - na.RiskShare,
			NormalMCR:       na.MCR,
			StressMCR:       sa.MCR,
			DMCR:            sa.MCR - na.MCR,
			Weight:          weight,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].DRiskShare) > math.Abs(rows[j].DRiskShare)
	})

	return rows
}

// TopDeltas returns the first n rows; n <= 0 returns all of them.
func TopDeltas(rows []DeltaRow, n int) []DeltaRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// DeltaMap keys risk-share deltas by symbol.
func DeltaMap(rows []DeltaRow) map[string]float64 {
	m := make(map[string]float64, len(rows))
	for _, r := range rows {
		m[r.Symbol] = r.DRiskShare
	}
	return m
}

// indexMetrics keys metrics by symbol; on duplicates the first wins.
func indexMetrics(assets []domain.AssetMetric) map[string]domain.AssetMetric {
	m := make(map[string]domain.AssetMetric, len(assets))
	for _, a := range assets {
		if _, ok := m[a.Symbol]; !ok {
			m[a.Symbol] = a
		}
	}
	return m
}
