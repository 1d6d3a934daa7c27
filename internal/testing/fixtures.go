package testing

import (
	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/pkg/formulas"
)

// Normal-regime fixture: five assets, GLD only trades in normal.
var (
	NormalSymbols = []string{"SPY", "TLT", "GLD", "QQQ", "EEM"}
	normalVols    = []float64{0.010, 0.006, 0.008, 0.013, 0.012}
	normalWeights = []float64{0.35, 0.25, 0.10, 0.20, 0.10}
	normalCorr    = [][]float64{
		{1.00, -0.30, 0.10, 0.90, 0.70},
		{-0.30, 1.00, 0.20, -0.25, -0.20},
		{0.10, 0.20, 1.00, 0.05, 0.15},
		{0.90, -0.25, 0.05, 1.00, 0.65},
		{0.70, -0.20, 0.15, 0.65, 1.00},
	}
)

// Stress-regime fixture: five assets, BTC only trades in stress.
var (
	StressSymbols = []string{"SPY", "TLT", "QQQ", "EEM", "BTC"}
	stressVols    = []float64{0.025, 0.012, 0.030, 0.028, 0.050}
	stressWeights = []float64{0.30, 0.25, 0.20, 0.15, 0.10}
	stressCorr    = [][]float64{
		{1.00, 0.20, 0.95, 0.85, 0.50},
		{0.20, 1.00, 0.15, 0.10, 0.05},
		{0.95, 0.15, 1.00, 0.80, 0.55},
		{0.85, 0.10, 0.80, 1.00, 0.45},
		{0.50, 0.05, 0.55, 0.45, 1.00},
	}
)

// NewPayloadFixture returns a consistent v1.0 payload: per-asset metrics are
// the exact decomposition of each regime's covariance at its baseline weights.
func NewPayloadFixture() *domain.Payload {
	return &domain.Payload{
		Version:  "1.0",
		AsOf:     "2025-01-31",
		Universe: []string{"SPY", "TLT", "GLD", "QQQ", "EEM", "BTC"},
		Regimes: domain.Regimes{
			Normal: domain.RegimeEntry{
				Window:  &domain.RegimeWindow{Type: "trailing", Length: 252},
				Metrics: NewRegimeMetricsFixture(NormalSymbols, normalVols, normalCorr, normalWeights),
			},
			Stress: domain.RegimeEntry{
				Window:  &domain.RegimeWindow{Type: "max_realized_vol", Length: 252, Lookback: 2520, Proxy: "equal_weight"},
				Metrics: NewRegimeMetricsFixture(StressSymbols, stressVols, stressCorr, stressWeights),
			},
		},
	}
}

// NewRegimeMetricsFixture builds cov = diag(vol)·corr·diag(vol) and decomposes it at weights.
func NewRegimeMetricsFixture(symbols []string, vols []float64, corr [][]float64, weights []float64) domain.RegimeMetrics {
	n := len(symbols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := range cov[i] {
			cov[i][j] = corr[i][j] * vols[i] * vols[j]
		}
	}

	res := formulas.ComputeRiskFromCov(cov, weights, formulas.DefaultAnnualizationFactor)

	assets := make([]domain.AssetMetric, n)
	for i, s := range symbols {
		assets[i] = domain.AssetMetric{
			Symbol:      s,
			Weight:      res.Weights[i],
			MCR:         res.MCR[i],
			RiskContrib: res.RiskContrib[i],
			RiskShare:   res.RiskShare[i],
		}
	}

	return domain.RegimeMetrics{
		NObs: 252,
		Portfolio: &domain.PortfolioSummary{
			VolAnn:  res.VolAnn,
			NAssets: n,
		},
		Assets: assets,
		Cov:    domain.LabeledMatrix{Symbols: append([]string(nil), symbols...), Data: cov},
		Corr:   domain.LabeledMatrix{Symbols: append([]string(nil), symbols...), Data: formulas.CorrelationFromCovariance(cov)},
		PCA: &domain.PCASummary{
			Eigvals:       []float64{0.0003, 0.0001},
			ExplainedVar:  []float64{0.7, 0.2},
			EffectiveBets: 2.1,
		},
	}
}
