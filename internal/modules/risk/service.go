package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/pkg/formulas"
	"github.com/rs/zerolog"
)

// SnapshotProvider returns the current payload snapshot.
type SnapshotProvider interface {
	Current() (*payload.Snapshot, error)
}

// Limits caps the size of derived views.
type Limits struct {
	TopRiskAssets   int
	TopPairs        int
	TopDeltas       int
	TopContributors int
	EditorRows      int
}

// DefaultLimits returns the view sizes used by the dashboard.
func DefaultLimits() Limits {
	return Limits{
		TopRiskAssets:   15,
		TopPairs:        12,
		TopDeltas:       20,
		TopContributors: 10,
		EditorRows:      12,
	}
}

// Row is one asset of a recomputed view.
type Row struct {
	Symbol      string  `json:"symbol"`
	Weight      float64 `json:"weight"`
	MCR         float64 `json:"mcr"`
	RiskContrib float64 `json:"riskContrib"`
	RiskShare   float64 `json:"riskShare"`
	DRiskShare  float64 `json:"dRiskShare"`
}

// EditorRow is an editable weight next to its baseline.
type EditorRow struct {
	Symbol         string  `json:"symbol"`
	Weight         float64 `json:"weight"`
	BaselineWeight float64 `json:"baselineWeight"`
}

// View is the risk decomposition of one regime under baseline or override weights.
type View struct {
	SnapshotID      string        `json:"snapshotId"`
	AsOf            string        `json:"asOf"`
	Regime          domain.Regime `json:"regime"`
	OverrideActive  bool          `json:"overrideActive"`
	Volatility      float64       `json:"volatility"`
	VolAnn          float64       `json:"volAnn"`
	BaselineVolAnn  float64       `json:"baselineVolAnn"`
	VarianceClamped bool          `json:"varianceClamped"`
	Symbols         []string      `json:"symbols"`
	Weights         []float64     `json:"weights"`
	Rows            []Row         `json:"rows"`
	TopContributors []Row         `json:"topContributors"`
	Editor          []EditorRow   `json:"editor"`
}

// DeltasView is the regime comparison of a snapshot's baseline metrics.
type DeltasView struct {
	SnapshotID string     `json:"snapshotId"`
	AsOf       string     `json:"asOf"`
	Total      int        `json:"total"`
	Rows       []DeltaRow `json:"rows"`
}

// StructureView is the focused correlation structure of a regime.
type StructureView struct {
	SnapshotID string               `json:"snapshotId"`
	AsOf       string               `json:"asOf"`
	Regime     domain.Regime        `json:"regime"`
	NObs       int                  `json:"nObs"`
	Window     *domain.RegimeWindow `json:"window,omitempty"`
	Selection  Selection            `json:"selection"`
	Pairs      []Pair               `json:"pairs"`
	PCA        *domain.PCASummary   `json:"pca,omitempty"`
}

// Service recomputes risk views from the current snapshot. It keeps no
// derived state: every call starts from the snapshot and its inputs.
type Service struct {
	snapshots SnapshotProvider
	factor    int
	limits    Limits
	metrics   *metrics.Registry
	log       zerolog.Logger
}

// NewService creates a risk service
func NewService(snapshots SnapshotProvider, annualizationFactor int, limits Limits, m *metrics.Registry, log zerolog.Logger) *Service {
	if annualizationFactor <= 0 {
		annualizationFactor = formulas.DefaultAnnualizationFactor
	}
	return &Service{
		snapshots: snapshots,
		factor:    annualizationFactor,
		limits:    limits,
		metrics:   m,
		log:       log.With().Str("component", "risk_service").Logger(),
	}
}

// Limits returns the configured view sizes.
func (s *Service) Limits() Limits {
	return s.limits
}

// CurrentSnapshot returns the snapshot views are computed from.
func (s *Service) CurrentSnapshot() (*payload.Snapshot, error) {
	return s.snapshots.Current()
}

// View recomputes regime r on the current snapshot. A nil override means
// baseline weights.
func (s *Service) View(r domain.Regime, override []float64) (*View, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}
	return s.ViewOf(snap, r, override)
}

// ViewOf recomputes regime r on snap.
func (s *Service) ViewOf(snap *payload.Snapshot, r domain.Regime, override []float64) (*View, error) {
	start := time.Now()

	data, err := snap.Regime(r)
	if err != nil {
		return nil, err
	}

	baseline := data.BaselineWeights()
	weights := baseline
	if override != nil {
		if err := CheckOverride(data, override); err != nil {
			return nil, err
		}
		weights = override
	}

	cov := data.Metrics.Cov.Data
	res := formulas.ComputeRiskFromCov(cov, weights, s.factor)
	baselineVolAnn := res.VolAnn
	if override != nil {
		baselineVolAnn = formulas.ComputeRiskFromCov(cov, baseline, s.factor).VolAnn
	}

	if res.VarianceClamped {
		s.metrics.RecordVarianceClamp(string(r))
		s.log.Warn().
			Str("snapshot_id", snap.ID).
			Str("regime", string(r)).
			Float64("raw_variance", res.RawVariance).
			Bool("override", override != nil).
			Msg("Negative portfolio variance clamped to zero; covariance may not be PSD")
	}

	deltas, err := s.deltaMap(snap)
	if err != nil {
		return nil, err
	}

	symbols := data.Symbols()
	rows := make([]Row, len(symbols))
	for i, sym := range symbols {
		rows[i] = Row{
			Symbol:      sym,
			Weight:      res.Weights[i],
			MCR:         res.MCR[i],
			RiskContrib: res.RiskContrib[i],
			RiskShare:   res.RiskShare[i],
			DRiskShare:  deltas[sym],
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RiskShare > rows[j].RiskShare
	})

	view := &View{
		SnapshotID:      snap.ID,
		AsOf:            snap.AsOf(),
		Regime:          r,
		OverrideActive:  override != nil,
		Volatility:      res.Volatility,
		VolAnn:          res.VolAnn,
		BaselineVolAnn:  baselineVolAnn,
		VarianceClamped: res.VarianceClamped,
		Symbols:         symbols,
		Weights:         append([]float64(nil), weights...),
		Rows:            rows,
		TopContributors: head(rows, s.limits.TopContributors),
		Editor:          editorRows(symbols, weights, baseline, s.limits.EditorRows),
	}

	elapsed := time.Since(start)
	s.metrics.ObserveRecompute(string(r), override != nil, elapsed)
	s.log.Debug().
		Str("regime", string(r)).
		Bool("override", override != nil).
		Int("assets", len(symbols)).
		Dur("duration", elapsed).
		Msg("Risk view recomputed")

	return view, nil
}

// Deltas compares the current snapshot's regimes; topN <= 0 returns all rows.
func (s *Service) Deltas(topN int) (*DeltasView, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	rows, err := s.deltaRows(snap)
	if err != nil {
		return nil, err
	}

	return &DeltasView{
		SnapshotID: snap.ID,
		AsOf:       snap.AsOf(),
		Total:      len(rows),
		Rows:       TopDeltas(rows, topN),
	}, nil
}

// Structure selects the topN assets of regime r by baseline risk share and
// ranks the topK pairs of their correlation submatrix.
func (s *Service) Structure(r domain.Regime, topN, topK int) (*StructureView, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	data, err := snap.Regime(r)
	if err != nil {
		return nil, err
	}

	sel := selectTopAssets(data.Metrics.Assets, data.Metrics.Corr, data.Corr, topN)

	return &StructureView{
		SnapshotID: snap.ID,
		AsOf:       snap.AsOf(),
		Regime:     r,
		NObs:       data.Metrics.NObs,
		Window:     data.Window,
		Selection:  sel,
		Pairs:      RankPairs(sel.Symbols, sel.Matrix, topK),
		PCA:        data.Metrics.PCA,
	}, nil
}

func (s *Service) deltaRows(snap *payload.Snapshot) ([]DeltaRow, error) {
	normal, err := snap.Regime(domain.RegimeNormal)
	if err != nil {
		return nil, fmt.Errorf("failed to read normal regime: %w", err)
	}
	stress, err := snap.Regime(domain.RegimeStress)
	if err != nil {
		return nil, fmt.Errorf("failed to read stress regime: %w", err)
	}
	return ComputeDeltas(normal.Metrics.Assets, stress.Metrics.Assets), nil
}

func (s *Service) deltaMap(snap *payload.Snapshot) (map[string]float64, error) {
	rows, err := s.deltaRows(snap)
	if err != nil {
		return nil, err
	}
	return DeltaMap(rows), nil
}

func head(rows []Row, n int) []Row {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// editorRows returns the n largest weights (stable on ties).
func editorRows(symbols []string, weights, baseline []float64, n int) []EditorRow {
	out := make([]EditorRow, len(symbols))
	for i, sym := range symbols {
		out[i] = EditorRow{Symbol: sym, Weight: weights[i], BaselineWeight: baseline[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
