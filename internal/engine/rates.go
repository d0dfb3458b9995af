package engine

import "math"

const (
	// MinRate and MaxRate bound every scoring rate the engine works with.
	MinRate = 0.05
	MaxRate = 4.5
)

// MatchLine is the market input: a signed goal spread (negative = home favoured)
// and the expected total of goals.
type MatchLine struct {
	Spread float64 `json:"spread"`
	Total  float64 `json:"total"`
}

// ScoringRates are the two Poisson means (expected goals) of a match.
type ScoringRates struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// Sum returns the combined expected goals.
func (r ScoringRates) Sum() float64 {
	return r.Home + r.Away
}

// DeriveRates solves home+away = total and home-away = -spread, then clamps
// both rates into [MinRate, MaxRate]. It never fails: clamping absorbs
// out-of-range and non-finite input.
func DeriveRates(line MatchLine) ScoringRates {
	return ScoringRates{
		Home: clampRate((line.Total - line.Spread) / 2),
		Away: clampRate((line.Total + line.Spread) / 2),
	}
}

func clampRate(r float64) float64 {
	return clampRange(r, MinRate, MaxRate)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
