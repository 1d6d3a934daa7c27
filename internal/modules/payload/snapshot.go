package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/google/uuid"
)

// RegimeData is one regime of a snapshot with its symbol indexes.
type RegimeData struct {
	Regime  domain.Regime
	Window  *domain.RegimeWindow
	Metrics *domain.RegimeMetrics

	Assets *domain.SymbolIndex
	Cov    *domain.SymbolIndex
	Corr   *domain.SymbolIndex

	baseline []float64
}

// Symbols returns the covariance symbol order, the index space of every vector.
func (d *RegimeData) Symbols() []string {
	return d.Cov.Symbols()
}

// Len returns the regime's universe size.
func (d *RegimeData) Len() int {
	return d.Cov.Len()
}

// BaselineWeights returns the payload weights aligned to the covariance order.
func (d *RegimeData) BaselineWeights() []float64 {
	return append([]float64(nil), d.baseline...)
}

// Snapshot is an immutable, fully indexed payload.
type Snapshot struct {
	ID        string
	Payload   *domain.Payload
	Source    string
	Checksum  string
	FetchedAt time.Time

	regimes map[domain.Regime]*RegimeData
}

// NewSnapshot indexes p. p must already be validated and prepared and must
// not be modified afterwards.
func NewSnapshot(p *domain.Payload, source string, fetchedAt time.Time) (*Snapshot, error) {
	checksum, err := Checksum(p)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		ID:        uuid.NewString(),
		Payload:   p,
		Source:    source,
		Checksum:  checksum,
		FetchedAt: fetchedAt,
		regimes:   make(map[domain.Regime]*RegimeData, 2),
	}

	for _, r := range domain.AllRegimes() {
		entry, _ := p.Regime(r)
		s.regimes[r] = newRegimeData(r, entry)
	}

	return s, nil
}

func newRegimeData(r domain.Regime, entry *domain.RegimeEntry) *RegimeData {
	m := &entry.Metrics

	assetSymbols := make([]string, len(m.Assets))
	weights := make(map[string]float64, len(m.Assets))
	for i, a := range m.Assets {
		assetSymbols[i] = a.Symbol
		weights[a.Symbol] = a.Weight
	}

	cov := domain.NewSymbolIndex(m.Cov.Symbols)

	return &RegimeData{
		Regime:   r,
		Window:   entry.Window,
		Metrics:  m,
		Assets:   domain.NewSymbolIndex(assetSymbols),
		Cov:      cov,
		Corr:     domain.NewSymbolIndex(m.Corr.Symbols),
		baseline: cov.Align(weights),
	}
}

// Regime returns the indexed data for r.
func (s *Snapshot) Regime(r domain.Regime) (*RegimeData, error) {
	d, ok := s.regimes[r]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRegime, string(r))
	}
	return d, nil
}

// AsOf returns the payload date.
func (s *Snapshot) AsOf() string {
	return s.Payload.AsOf
}

// Checksum is the hex SHA-256 of the payload's JSON encoding.
func Checksum(p *domain.Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
