package engine

import (
	"errors"
	"fmt"
	"math"
)

// Names of the optional grid corrections.
const (
	CorrectionOverdispersion    = "overdispersion"
	CorrectionDiagonalInflation = "diagonal_inflation"
	CorrectionBayesianSmoothing = "bayesian_smoothing"
	CorrectionZeroInflation     = "zero_inflation"
)

// ErrUnknownCorrection is returned when a correction name is not in the catalogue.
var ErrUnknownCorrection = errors.New("unknown correction")

// Correction is an optional, pure transformation of a score grid. It only runs
// when it is passed to NewGridBuilder.
type Correction struct {
	Name  string
	Apply func(ScoreGrid) ScoreGrid
}

// CorrectionParams holds the tuning knobs of the correction catalogue.
type CorrectionParams struct {
	OverdispersionDelta float64      // relative spread of the two-point gamma mixture
	DiagonalInflation   float64      // share of mass moved to the diagonal component
	SmoothingWeight     float64      // weight of the league prior grid
	PriorRates          ScoringRates // league-average rates used as prior
	ZeroInflation       float64      // extra 0-0 mass
}

// DefaultCorrectionParams returns conservative values for every correction.
func DefaultCorrectionParams() CorrectionParams {
	return CorrectionParams{
		OverdispersionDelta: 0.10,
		DiagonalInflation:   0.04,
		SmoothingWeight:     0.05,
		PriorRates:          ScoringRates{Home: 1.45, Away: 1.15},
		ZeroInflation:       0.02,
	}
}

// AvailableCorrections lists the catalogue in its canonical order.
func AvailableCorrections() []string {
	return []string{
		CorrectionOverdispersion,
		CorrectionDiagonalInflation,
		CorrectionBayesianSmoothing,
		CorrectionZeroInflation,
	}
}

// CorrectionsByName resolves names into corrections, keeping the given order.
func CorrectionsByName(names []string, params CorrectionParams) ([]Correction, error) {
	seen := make(map[string]bool, len(names))
	out := make([]Correction, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("correction %q listed twice", name)
		}
		seen[name] = true

		var c Correction
		switch name {
		case CorrectionOverdispersion:
			c = Overdispersion(params.OverdispersionDelta)
		case CorrectionDiagonalInflation:
			c = DiagonalInflation(params.DiagonalInflation)
		case CorrectionBayesianSmoothing:
			c = BayesianSmoothing(params.SmoothingWeight, params.PriorRates)
		case CorrectionZeroInflation:
			c = ZeroInflation(params.ZeroInflation)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCorrection, name)
		}
		out = append(out, c)
	}
	return out, nil
}

// Overdispersion replaces each Poisson marginal with an equal mixture of
// Poisson(λ(1-delta)) and Poisson(λ(1+delta)), a two-point stand-in for a gamma
// mixture. Means are kept, variances grow by (delta·λ)². Dixon-Coles factors
// already in the grid are preserved.
func Overdispersion(delta float64) Correction {
	delta = clampRange(delta, 0, 0.9)
	return Correction{
		Name: CorrectionOverdispersion,
		Apply: func(g ScoreGrid) ScoreGrid {
			hr := mixtureRatios(g.Rates.Home, delta, g.MaxGoals)
			ar := mixtureRatios(g.Rates.Away, delta, g.MaxGoals)
			return g.Map(func(h, a int, p float64) float64 {
				return p * hr[h] * ar[a]
			})
		},
	}
}

func mixtureRatios(lambda, delta float64, n int) []float64 {
	base := poissonRow(lambda, n)
	lo := poissonRow(lambda*(1-delta), n)
	hi := poissonRow(lambda*(1+delta), n)
	ratios := make([]float64, n+1)
	for k := range ratios {
		if base[k] <= 0 {
			continue
		}
		ratios[k] = 0.5 * (lo[k] + hi[k]) / base[k]
	}
	return ratios
}

// DiagonalInflation mixes a share theta of a diagonal component into the grid
// (Karlis-Ntzoufras style), raising draw probabilities.
func DiagonalInflation(theta float64) Correction {
	theta = clampRange(theta, 0, 0.5)
	return Correction{
		Name: CorrectionDiagonalInflation,
		Apply: func(g ScoreGrid) ScoreGrid {
			diag := poissonRow(math.Min(g.Rates.Home, g.Rates.Away), g.MaxGoals)
			mass := 0.0
			for _, p := range diag {
				mass += p
			}
			total := g.Total()
			return g.Map(func(h, a int, p float64) float64 {
				v := (1 - theta) * p
				if h == a && mass > 0 {
					v += theta * total * diag[h] / mass
				}
				return v
			})
		},
	}
}

// BayesianSmoothing blends the grid toward a league-prior grid with the given weight.
func BayesianSmoothing(weight float64, prior ScoringRates) Correction {
	weight = clampRange(weight, 0, 1)
	prior = ScoringRates{Home: clampRate(prior.Home), Away: clampRate(prior.Away)}
	return Correction{
		Name: CorrectionBayesianSmoothing,
		Apply: func(g ScoreGrid) ScoreGrid {
			pg := baseGrid(prior, g.MaxGoals)
			scale := 0.0
			if pt := pg.Total(); pt > 0 {
				scale = g.Total() / pt
			}
			return g.Map(func(h, a int, p float64) float64 {
				return (1-weight)*p + weight*scale*pg.Prob(h, a)
			})
		},
	}
}

// ZeroInflation moves a share pi of the mass onto 0-0, taken proportionally from every cell.
func ZeroInflation(pi float64) Correction {
	pi = clampRange(pi, 0, 0.5)
	return Correction{
		Name: CorrectionZeroInflation,
		Apply: func(g ScoreGrid) ScoreGrid {
			total := g.Total()
			return g.Map(func(h, a int, p float64) float64 {
				v := (1 - pi) * p
				if h == 0 && a == 0 {
					v += pi * total
				}
				return v
			})
		},
	}
}
