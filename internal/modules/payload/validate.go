package payload

import (
	"fmt"
	"math"
	"strings"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/pkg/formulas"
)

// SupportedMajorVersion is the payload contract major version this service reads.
const SupportedMajorVersion = "1"

// Validate checks the structure of p once per load. Vectors and matrices are
// index-aligned downstream, so symbol order is checked here and nowhere else.
func Validate(p *domain.Payload) error {
	if p == nil {
		return fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}

	if p.Version != SupportedMajorVersion && !strings.HasPrefix(p.Version, SupportedMajorVersion+".") {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidPayload, p.Version)
	}

	for _, r := range domain.AllRegimes() {
		entry, _ := p.Regime(r)
		if err := validateRegime(&entry.Metrics); err != nil {
			return fmt.Errorf("%w: regime %s: %v", ErrInvalidPayload, r, err)
		}
	}

	return nil
}

func validateRegime(m *domain.RegimeMetrics) error {
	symbols := make([]string, len(m.Assets))
	seen := make(map[string]struct{}, len(m.Assets))
	for i, a := range m.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset %d has no symbol", i)
		}
		if _, dup := seen[a.Symbol]; dup {
			return fmt.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = struct{}{}
		symbols[i] = a.Symbol
	}

	if m.Cov.Empty() && len(symbols) > 0 {
		return fmt.Errorf("cov is missing")
	}
	if err := validateMatrix("cov", m.Cov, symbols); err != nil {
		return err
	}
	if !m.Corr.Empty() {
		if err := validateMatrix("corr", m.Corr, symbols); err != nil {
			return err
		}
	}

	return nil
}

func validateMatrix(name string, m domain.LabeledMatrix, symbols []string) error {
	n := len(m.Symbols)
	if n != len(symbols) {
		return fmt.Errorf("%s has %d symbols, assets has %d", name, n, len(symbols))
	}
	for i, s := range m.Symbols {
		if s != symbols[i] {
			return fmt.Errorf("%s symbol %d is %s, assets has %s", name, i, s, symbols[i])
		}
	}

	if len(m.Data) != n {
		return fmt.Errorf("%s has %d rows, want %d", name, len(m.Data), n)
	}
	for i, row := range m.Data {
		if len(row) != n {
			return fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s[%d][%d] is not finite", name, i, j)
			}
		}
	}

	return nil
}

// Prepare returns a copy of p with derived fields filled in: a regime that
// ships cov without corr gets corr derived from cov, and an empty universe is
// filled from the asset lists. p itself is never modified.
func Prepare(p *domain.Payload) *domain.Payload {
	out := *p

	for _, r := range domain.AllRegimes() {
		entry, _ := out.Regime(r)
		if entry.Metrics.Corr.Empty() && !entry.Metrics.Cov.Empty() {
			entry.Metrics.Corr = domain.LabeledMatrix{
				Symbols: append([]string(nil), entry.Metrics.Cov.Symbols...),
				Data:    formulas.CorrelationFromCovariance(entry.Metrics.Cov.Data),
			}
		}
	}

	if len(out.Universe) == 0 {
		out.Universe = universeOf(&out)
	}

	return &out
}

func universeOf(p *domain.Payload) []string {
	seen := make(map[string]struct{})
	var universe []string
	for _, r := range domain.AllRegimes() {
		entry, _ := p.Regime(r)
		for _, a := range entry.Metrics.Assets {
			if _, ok := seen[a.Symbol]; ok {
				continue
			}
			seen[a.Symbol] = struct{}{}
			universe = append(universe, a.Symbol)
		}
	}
	return universe
}
