package validation

import (
	"fmt"
	"math"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/line"
)

const maxOdds = 1000

// Validator checks request data before it reaches the engine.
// Out-of-range but finite lines are accepted; the engine clamps them.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLine validates a handicap/total pair
func (v *Validator) ValidateLine(name string, l *engine.MatchLine) error {
	if l == nil {
		return fmt.Errorf("%s line is required", name)
	}
	if !isFinite(l.Spread) || !isFinite(l.Total) {
		return fmt.Errorf("%s line must be finite", name)
	}
	return nil
}

// ValidateForm validates an optional team form signal. Finite but malformed
// signals pass; the engine ignores them.
func (v *Validator) ValidateForm(name string, f *engine.TeamForm) error {
	if f == nil {
		return nil
	}
	for _, x := range []float64{f.FormFactor, f.Variance, f.GoalsScoredAvg, f.GoalsConcededAvg} {
		if !isFinite(x) {
			return fmt.Errorf("%s form must be finite", name)
		}
	}
	return nil
}

// ValidateMarkets validates bookmaker markets
func (v *Validator) ValidateMarkets(markets []line.Market) error {
	for i, m := range markets {
		for j, o := range m.Outcomes {
			if err := v.ValidateOutcome(o); err != nil {
				return fmt.Errorf("market %d outcome %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// ValidateOutcome validates outcome data
func (v *Validator) ValidateOutcome(o line.Outcome) error {
	if o.OutcomeType == "" {
		return fmt.Errorf("outcome type cannot be empty")
	}
	if !isValidOutcomeType(o.OutcomeType) {
		return fmt.Errorf("invalid outcome type: %s", o.OutcomeType)
	}

	// Suspended prices (0 or 1) pass here and are skipped by line.MainLine
	if !isFinite(o.Odds) || o.Odds < 0 {
		return fmt.Errorf("odds cannot be negative: %v", o.Odds)
	}
	if o.Odds > maxOdds {
		return fmt.Errorf("odds too high (suspicious): %v", o.Odds)
	}

	if o.OutcomeType == line.OutcomeHandicapHome || o.OutcomeType == line.OutcomeHandicapAway ||
		o.OutcomeType == line.OutcomeTotalOver || o.OutcomeType == line.OutcomeTotalUnder {
		if _, err := line.ParseParameter(o.Parameter); err != nil {
			return fmt.Errorf("invalid parameter %q for %s: %w", o.Parameter, o.OutcomeType, err)
		}
	}
	return nil
}

func isValidOutcomeType(t line.OutcomeType) bool {
	switch t {
	case line.OutcomeHomeWin, line.OutcomeDraw, line.OutcomeAwayWin,
		line.OutcomeHandicapHome, line.OutcomeHandicapAway,
		line.OutcomeTotalOver, line.OutcomeTotalUnder:
		return true
	}
	return false
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
