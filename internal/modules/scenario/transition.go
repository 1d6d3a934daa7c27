package scenario

import (
	"errors"
	"fmt"
)

// TransitionKind names a state machine transition.
type TransitionKind string

const (
	TransitionSetRegime    TransitionKind = "set_regime"
	TransitionSetWeights   TransitionKind = "set_weights"
	TransitionPatchWeights TransitionKind = "patch_weights"
	TransitionReset        TransitionKind = "reset"
)

// ErrInvalidTransition is returned for unknown or incomplete transitions.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition is one state change request. Weights is used by set_weights,
// WeightsBySymbol by patch_weights.
type Transition struct {
	Kind            TransitionKind     `json:"kind"`
	Regime          string             `json:"regime,omitempty"`
	Weights         []float64          `json:"weights,omitempty"`
	WeightsBySymbol map[string]float64 `json:"weightsBySymbol,omitempty"`
}

// SetRegime builds a set_regime transition.
func SetRegime(regime string) Transition {
	return Transition{Kind: TransitionSetRegime, Regime: regime}
}

// SetWeights builds a set_weights transition.
func SetWeights(w []float64) Transition {
	return Transition{Kind: TransitionSetWeights, Weights: w}
}

// PatchWeights builds a patch_weights transition.
func PatchWeights(patch map[string]float64) Transition {
	return Transition{Kind: TransitionPatchWeights, WeightsBySymbol: patch}
}

// Reset builds a reset transition.
func Reset() Transition {
	return Transition{Kind: TransitionReset}
}

// Validate checks the transition carries what its kind needs.
func (t Transition) Validate() error {
	switch t.Kind {
	case TransitionSetRegime:
		if t.Regime == "" {
			return fmt.Errorf("%w: set_regime needs a regime", ErrInvalidTransition)
		}
	case TransitionSetWeights:
		if t.Weights == nil {
			return fmt.Errorf("%w: set_weights needs weights", ErrInvalidTransition)
		}
	case TransitionPatchWeights:
		if len(t.WeightsBySymbol) == 0 {
			return fmt.Errorf("%w: patch_weights needs weightsBySymbol", ErrInvalidTransition)
		}
	case TransitionReset:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransition, t.Kind)
	}
	return nil
}
