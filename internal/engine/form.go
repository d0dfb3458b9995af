package engine

import "math"

// DefaultMaxFormAdjustment caps the relative change a form signal can apply to one rate.
const DefaultMaxFormAdjustment = 0.03

// TeamForm is an optional, low-weight team-strength signal.
type TeamForm struct {
	FormFactor       float64 `json:"form_factor"` // 0 = all recent games lost, 1 = all won
	Variance         float64 `json:"variance"`    // goal variance, high = unpredictable
	GoalsScoredAvg   float64 `json:"goals_scored_avg"`
	GoalsConcededAvg float64 `json:"goals_conceded_avg"`
}

// valid reports whether the signal can be used. Malformed signals are treated as absent.
func (f *TeamForm) valid() bool {
	if f == nil {
		return false
	}
	for _, v := range []float64{f.FormFactor, f.Variance, f.GoalsScoredAvg, f.GoalsConcededAvg} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return f.FormFactor >= 0 && f.FormFactor <= 1 && f.Variance >= 0
}

// multiplier returns 1 + the bounded relative adjustment for one side.
func (f *TeamForm) multiplier(maxAdj float64) float64 {
	if !f.valid() || maxAdj <= 0 {
		return 1
	}
	strength := 0.7*(2*f.FormFactor-1) + 0.3*clampRange((f.GoalsScoredAvg-f.GoalsConcededAvg)/2, -1, 1)
	confidence := 1 / (1 + f.Variance)
	return 1 + maxAdj*strength*confidence
}

// AdjustRates nudges the rates by at most maxAdj (relative) per side using
// the form signals. Nil or malformed signals leave the side untouched; with
// both absent the rates are returned unchanged.
func AdjustRates(rates ScoringRates, home, away *TeamForm, maxAdj float64) ScoringRates {
	hm := home.multiplier(maxAdj)
	am := away.multiplier(maxAdj)
	if hm == 1 && am == 1 {
		return rates
	}
	return ScoringRates{
		Home: clampRate(rates.Home * hm),
		Away: clampRate(rates.Away * am),
	}
}
