// Package engine turns a market spread and total into a coherent family of
// football market probabilities: the two lines are mapped to Poisson scoring
// rates, a Dixon-Coles corrected score grid is built from them and every market
// is summed out of that one grid.
//
// An Engine is immutable after New and safe for concurrent use.
package engine

import (
	"fmt"
	"math"
)

// Options configures the markets an Engine derives.
type Options struct {
	OverUnderLines    []float64    // X.5 lines, full time
	HalfTimeLines     []float64    // X.5 lines, first half
	HandicapLines     []float64    // home-side Asian handicap lines, multiples of 0.5
	ExactScoreWindow  int          // list scorelines with both sides <= window; <= 0 lists the whole grid
	ExactTotalMax     int          // exact totals 0..max-1 plus a "max or more" bucket
	MaxFormAdjustment float64      // relative cap for team-form adjustments
	Corrections       []Correction // optional grid corrections, in order
}

// DefaultOptions returns the standard market set with no optional corrections.
func DefaultOptions() Options {
	return Options{
		OverUnderLines:    []float64{0.5, 1.5, 2.5, 3.5, 4.5},
		HalfTimeLines:     []float64{0.5, 1.5, 2.5},
		HandicapLines:     []float64{-1.5, -1.0, -0.5, 0, 0.5, 1.0, 1.5},
		ExactScoreWindow:  5,
		ExactTotalMax:     6,
		MaxFormAdjustment: DefaultMaxFormAdjustment,
	}
}

// Engine computes probability reports.
type Engine struct {
	opts    Options
	builder *GridBuilder
}

// New validates the options and returns an Engine.
func New(opts Options) (*Engine, error) {
	for _, l := range opts.OverUnderLines {
		if !isHalfLine(l) {
			return nil, fmt.Errorf("over/under line %v is not an X.5 line", l)
		}
	}
	for _, l := range opts.HalfTimeLines {
		if !isHalfLine(l) {
			return nil, fmt.Errorf("half-time line %v is not an X.5 line", l)
		}
	}
	for _, l := range opts.HandicapLines {
		if math.IsNaN(l) || math.IsInf(l, 0) || math.Mod(l*2, 1) != 0 {
			return nil, fmt.Errorf("handicap line %v is not a multiple of 0.5", l)
		}
	}
	if opts.MaxFormAdjustment < 0 || opts.MaxFormAdjustment > 0.2 {
		return nil, fmt.Errorf("max form adjustment %v out of range [0, 0.2]", opts.MaxFormAdjustment)
	}
	if opts.ExactTotalMax < 1 {
		opts.ExactTotalMax = DefaultOptions().ExactTotalMax
	}

	opts.OverUnderLines = append([]float64(nil), opts.OverUnderLines...)
	opts.HalfTimeLines = append([]float64(nil), opts.HalfTimeLines...)
	opts.HandicapLines = append([]float64(nil), opts.HandicapLines...)
	opts.Corrections = append([]Correction(nil), opts.Corrections...)

	return &Engine{opts: opts, builder: NewGridBuilder(opts.Corrections...)}, nil
}

func isHalfLine(l float64) bool {
	return l > 0 && !math.IsInf(l, 0) && math.Mod(l, 1) == 0.5
}

// Corrections lists the optional corrections the engine applies.
func (e *Engine) Corrections() []string {
	return e.builder.Enabled()
}

// Request is the input of Compute. Form signals are optional.
type Request struct {
	Opening  MatchLine `json:"opening"`
	Current  MatchLine `json:"current"`
	HomeForm *TeamForm `json:"home_form,omitempty"`
	AwayForm *TeamForm `json:"away_form,omitempty"`
}

// Snapshot is the evaluation of one line.
type Snapshot struct {
	Line       MatchLine    `json:"line"`
	LineRates  ScoringRates `json:"line_rates"` // before form adjustment
	Rates      ScoringRates `json:"rates"`
	Markets    Markets      `json:"markets"`
	Degenerate bool         `json:"degenerate,omitempty"`
}

// Movement is the difference current minus opening.
type Movement struct {
	SpreadChange   float64 `json:"spread_change"`
	TotalChange    float64 `json:"total_change"`
	HomeRateChange float64 `json:"home_rate_change"`
	AwayRateChange float64 `json:"away_rate_change"`
}

// Report holds the opening and current evaluations and the movement between them.
type Report struct {
	Opening     Snapshot `json:"opening"`
	Current     Snapshot `json:"current"`
	Movement    Movement `json:"movement"`
	Corrections []string `json:"corrections"`
}

// Compute evaluates the opening and current lines independently.
func (e *Engine) Compute(req Request) Report {
	opening := e.Evaluate(req.Opening, req.HomeForm, req.AwayForm)
	current := e.Evaluate(req.Current, req.HomeForm, req.AwayForm)
	return Report{
		Opening: opening,
		Current: current,
		Movement: Movement{
			SpreadChange:   req.Current.Spread - req.Opening.Spread,
			TotalChange:    req.Current.Total - req.Opening.Total,
			HomeRateChange: current.Rates.Home - opening.Rates.Home,
			AwayRateChange: current.Rates.Away - opening.Rates.Away,
		},
		Corrections: e.Corrections(),
	}
}

// Evaluate runs rates, form adjustment, grid and markets for a single line.
func (e *Engine) Evaluate(line MatchLine, home, away *TeamForm) Snapshot {
	lineRates := DeriveRates(line)
	rates := AdjustRates(lineRates, home, away, e.opts.MaxFormAdjustment)
	markets := e.Markets(rates)
	return Snapshot{
		Line:       line,
		LineRates:  lineRates,
		Rates:      rates,
		Markets:    markets,
		Degenerate: markets.Degenerate(),
	}
}

// Markets builds the full-time and half-time grids for the rates and aggregates every market.
func (e *Engine) Markets(rates ScoringRates) Markets {
	grid := e.builder.Build(rates)
	htRates, factor := halfTimeRates(rates)
	htGrid := e.builder.Build(htRates)

	result := matchResult(grid)
	return Markets{
		MatchResult:      result,
		BothTeamsToScore: bothTeamsToScore(grid),
		OverUnder:        overUnder(grid, e.opts.OverUnderLines),
		HalfTime: HalfTime{
			Factor:           factor,
			Rates:            htRates,
			MatchResult:      matchResult(htGrid),
			BothTeamsToScore: bothTeamsToScore(htGrid),
			OverUnder:        overUnder(htGrid, e.opts.HalfTimeLines),
		},
		DoubleChance:  doubleChance(result),
		AsianHandicap: asianHandicap(grid, e.opts.HandicapLines),
		WinToNil:      winToNil(grid),
		ExactTotal:    exactTotals(grid, e.opts.ExactTotalMax),
		ExactScores:   exactScores(grid, e.opts.ExactScoreWindow),
	}
}
