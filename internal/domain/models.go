// Package domain provides the payload and risk models shared by every module.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Regime is a named market condition with its own covariance and baseline weights.
type Regime string

const (
	RegimeNormal Regime = "normal"
	RegimeStress Regime = "stress"
)

// ErrUnknownRegime is returned when a regime name is neither normal nor stress.
var ErrUnknownRegime = errors.New("unknown regime")

// AllRegimes returns the regimes in payload order.
func AllRegimes() []Regime {
	return []Regime{RegimeNormal, RegimeStress}
}

// ParseRegime parses a regime name (case-insensitive).
func ParseRegime(s string) (Regime, error) {
	switch Regime(strings.ToLower(strings.TrimSpace(s))) {
	case RegimeNormal:
		return RegimeNormal, nil
	case RegimeStress:
		return RegimeStress, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRegime, s)
	}
}

// Valid reports whether r is a known regime.
func (r Regime) Valid() bool {
	return r == RegimeNormal || r == RegimeStress
}

// AssetMetric is the per-asset risk snapshot for one regime.
type AssetMetric struct {
	Symbol      string  `json:"symbol"`
	Weight      float64 `json:"weight"`
	MCR         float64 `json:"mcr"`
	RiskContrib float64 `json:"riskContrib"`
	RiskShare   float64 `json:"riskShare"`
}

// LabeledMatrix is a square matrix whose row/column order is Symbols.
type LabeledMatrix struct {
	Symbols []string    `json:"symbols"`
	Data    [][]float64 `json:"data"`
}

// Empty reports whether the matrix carries no symbols.
func (m LabeledMatrix) Empty() bool {
	return len(m.Symbols) == 0
}

// At returns Data[i][j], or 0 when the entry is missing.
func (m LabeledMatrix) At(i, j int) float64 {
	if i < 0 || j < 0 || i >= len(m.Data) || j >= len(m.Data[i]) {
		return 0
	}
	return m.Data[i][j]
}

// PortfolioSummary is the upstream portfolio-level summary for a regime.
type PortfolioSummary struct {
	VolAnn              float64       `json:"volAnn"`
	NAssets             int           `json:"nAssets"`
	TopRiskContributors []AssetMetric `json:"topRiskContributors,omitempty"`
}

// Loading is one asset's loading on a principal component.
type Loading struct {
	Symbol  string  `json:"symbol"`
	Loading float64 `json:"loading"`
}

// PCASummary is computed upstream and passed through untouched.
type PCASummary struct {
	Eigvals        []float64 `json:"eigvals"`
	ExplainedVar   []float64 `json:"explainedVar"`
	EffectiveBets  float64   `json:"effectiveBets"`
	PC1TopLoadings []Loading `json:"pc1TopLoadings,omitempty"`
}

// RegimeMetrics holds everything the payload carries for one regime.
// Cov and Corr symbol order matches Assets order.
type RegimeMetrics struct {
	NObs      int               `json:"nObs"`
	Portfolio *PortfolioSummary `json:"portfolio,omitempty"`
	Assets    []AssetMetric     `json:"assets"`
	Corr      LabeledMatrix     `json:"corr"`
	Cov       LabeledMatrix     `json:"cov"`
	PCA       *PCASummary       `json:"pca,omitempty"`
}

// RegimeWindow describes the return window a regime was estimated on.
type RegimeWindow struct {
	Type     string `json:"type"`
	Length   int    `json:"length"`
	Lookback int    `json:"lookback,omitempty"`
	Proxy    string `json:"proxy,omitempty"`
}

// RegimeEntry pairs a regime's window with its metrics.
type RegimeEntry struct {
	Window  *RegimeWindow `json:"window,omitempty"`
	Metrics RegimeMetrics `json:"metrics"`
}

// Regimes holds the two regime entries of a payload.
type Regimes struct {
	Normal RegimeEntry `json:"normal"`
	Stress RegimeEntry `json:"stress"`
}

// Payload is the published risk payload (contract v1.x).
type Payload struct {
	Version  string   `json:"version"`
	AsOf     string   `json:"asOf"`
	Universe []string `json:"universe"`
	Regimes  Regimes  `json:"regimes"`
}

// Regime returns the entry for r.
func (p *Payload) Regime(r Regime) (*RegimeEntry, error) {
	switch r {
	case RegimeNormal:
		return &p.Regimes.Normal, nil
	case RegimeStress:
		return &p.Regimes.Stress, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegime, string(r))
	}
}
