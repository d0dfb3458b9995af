package engine

import "math"

// ScoreGrid holds the joint probability of every scoreline 0..MaxGoals per side,
// together with the rates it was built from.
type ScoreGrid struct {
	Rates    ScoringRates
	MaxGoals int
	cells    [][]float64 // [homeGoals][awayGoals]
}

func newGrid(rates ScoringRates, maxGoals int) ScoreGrid {
	cells := make([][]float64, maxGoals+1)
	for i := range cells {
		cells[i] = make([]float64, maxGoals+1)
	}
	return ScoreGrid{Rates: rates, MaxGoals: maxGoals, cells: cells}
}

// Prob returns the probability of the scoreline, zero outside the grid.
func (g ScoreGrid) Prob(homeGoals, awayGoals int) float64 {
	if homeGoals < 0 || awayGoals < 0 || homeGoals > g.MaxGoals || awayGoals > g.MaxGoals {
		return 0
	}
	return g.cells[homeGoals][awayGoals]
}

// Total returns the probability mass held by the grid.
func (g ScoreGrid) Total() float64 {
	total := 0.0
	g.Each(func(_, _ int, p float64) { total += p })
	return total
}

// Each visits every cell in row-major order.
func (g ScoreGrid) Each(fn func(homeGoals, awayGoals int, p float64)) {
	for h := 0; h <= g.MaxGoals; h++ {
		for a := 0; a <= g.MaxGoals; a++ {
			fn(h, a, g.cells[h][a])
		}
	}
}

// Map returns a new grid with every cell replaced by fn. The receiver is not modified.
func (g ScoreGrid) Map(fn func(homeGoals, awayGoals int, p float64) float64) ScoreGrid {
	out := newGrid(g.Rates, g.MaxGoals)
	for h := 0; h <= g.MaxGoals; h++ {
		for a := 0; a <= g.MaxGoals; a++ {
			v := fn(h, a, g.cells[h][a])
			if v < 0 || math.IsNaN(v) {
				v = 0
			}
			out.cells[h][a] = v
		}
	}
	return out
}

// DixonColesRho picks the low-score correlation from the average rate:
// low-scoring matches show more correlation.
func DixonColesRho(rates ScoringRates) float64 {
	avg := rates.Sum() / 2
	switch {
	case avg < 1.5:
		return 0.15
	case avg < 2.5:
		return 0.12
	default:
		return 0.08
	}
}

// DixonColesTau is the multiplicative correction for a scoreline. Only 0-0, 1-0,
// 0-1 and 1-1 are touched; the factor never drops below 0.01.
func DixonColesTau(homeGoals, awayGoals int, rates ScoringRates, rho float64) float64 {
	var tau float64
	switch {
	case homeGoals == 0 && awayGoals == 0:
		tau = 1 - rates.Home*rates.Away*rho
	case homeGoals == 1 && awayGoals == 0:
		tau = 1 + rates.Home*rho
	case homeGoals == 0 && awayGoals == 1:
		tau = 1 + rates.Away*rho
	case homeGoals == 1 && awayGoals == 1:
		tau = 1 - rho
	default:
		return 1
	}
	return math.Max(tau, 0.01)
}

// baseGrid is the independent Poisson product with the Dixon-Coles correction,
// bounded at the given cutoff.
func baseGrid(rates ScoringRates, maxGoals int) ScoreGrid {
	g := newGrid(rates, maxGoals)
	home := poissonRow(rates.Home, maxGoals)
	away := poissonRow(rates.Away, maxGoals)
	rho := DixonColesRho(rates)
	for h := 0; h <= maxGoals; h++ {
		for a := 0; a <= maxGoals; a++ {
			g.cells[h][a] = home[h] * away[a] * DixonColesTau(h, a, rates, rho)
		}
	}
	return g
}

// GridBuilder builds score grids. The set of optional corrections is fixed at
// construction and applied in the order given.
type GridBuilder struct {
	corrections []Correction
}

// NewGridBuilder returns a builder that always applies Dixon-Coles and then
// exactly the listed corrections.
func NewGridBuilder(corrections ...Correction) *GridBuilder {
	cs := make([]Correction, len(corrections))
	copy(cs, corrections)
	return &GridBuilder{corrections: cs}
}

// Enabled lists the names of the optional corrections this builder applies.
func (b *GridBuilder) Enabled() []string {
	names := make([]string, 0, len(b.corrections))
	for _, c := range b.corrections {
		names = append(names, c.Name)
	}
	return names
}

// Build computes the grid for the rates.
func (b *GridBuilder) Build(rates ScoringRates) ScoreGrid {
	g := baseGrid(rates, Cutoff(rates))
	for _, c := range b.corrections {
		g = c.Apply(g)
	}
	return g
}
