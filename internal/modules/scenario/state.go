// Package scenario holds per-user scenario state (active regime plus an
// optional weight override) and recomputes risk views on every transition.
package scenario

import (
	"strconv"
	"strings"

	"github.com/aristath/prisk/internal/domain"
)

// State is (active regime, weight override | absent). The zero value is not
// valid; use NewState.
type State struct {
	regime   domain.Regime
	override []float64
}

// NewState returns the initial state: normal regime, no override.
func NewState() State {
	return State{regime: domain.RegimeNormal}
}

// Regime returns the active regime.
func (s State) Regime() domain.Regime {
	return s.regime
}

// HasOverride reports whether a weight override is set.
func (s State) HasOverride() bool {
	return s.override != nil
}

// Override returns a copy of the override, or nil.
func (s State) Override() []float64 {
	if s.override == nil {
		return nil
	}
	return append([]float64(nil), s.override...)
}

// SetRegime switches regime and always clears the override: weights from
// one regime's universe do not apply to another's.
func (s *State) SetRegime(r domain.Regime) error {
	if !r.Valid() {
		return domain.ErrUnknownRegime
	}
	s.regime = r
	s.override = nil
	return nil
}

// SetWeightOverride stores a copy of w. A nil w clears the override.
func (s *State) SetWeightOverride(w []float64) {
	if w == nil {
		s.override = nil
		return
	}
	s.override = append([]float64(nil), w...)
}

// Reset clears the override.
func (s *State) Reset() {
	s.override = nil
}

// Weights returns the override if set, else a copy of baseline.
func (s State) Weights(baseline []float64) []float64 {
	if s.override != nil {
		return s.Override()
	}
	return append([]float64(nil), baseline...)
}

// Key identifies the state for memoizing derived views.
func (s State) Key() string {
	if s.override == nil {
		return string(s.regime) + "|baseline"
	}

	var b strings.Builder
	b.WriteString(string(s.regime))
	b.WriteByte('|')
	for i, v := range s.override {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
