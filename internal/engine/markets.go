package engine

import (
	"math"
	"sort"
)

// degenerateMass is the mass below which a market cannot be normalised.
const degenerateMass = 1e-12

// ThreeWay is the 1X2 market.
type ThreeWay struct {
	Home       float64 `json:"1"`
	Draw       float64 `json:"X"`
	Away       float64 `json:"2"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// BothTeamsToScore is the GG/NG market.
type BothTeamsToScore struct {
	Yes        float64 `json:"GG"`
	No         float64 `json:"NG"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// TotalLine is one Over/Under line; Line is always X.5.
type TotalLine struct {
	Line       float64 `json:"line"`
	Over       float64 `json:"over"`
	Under      float64 `json:"under"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// HalfTime holds the first-half markets, computed from a grid of scaled rates.
type HalfTime struct {
	Factor           float64          `json:"factor"`
	Rates            ScoringRates     `json:"rates"`
	MatchResult      ThreeWay         `json:"match_result"`
	BothTeamsToScore BothTeamsToScore `json:"both_teams_to_score"`
	OverUnder        []TotalLine      `json:"over_under"`
}

// DoubleChance are unions of 1X2 outcomes; the three always sum to 2.
type DoubleChance struct {
	HomeOrDraw float64 `json:"1X"`
	HomeOrAway float64 `json:"12"`
	DrawOrAway float64 `json:"X2"`
}

// HandicapLine is one Asian handicap line, expressed from the home side.
// Pushes on whole lines are excluded before normalisation.
type HandicapLine struct {
	Line       float64 `json:"line"`
	Home       float64 `json:"home"`
	Away       float64 `json:"away"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// WinToNil is P(home scores, away does not) and the mirror case.
type WinToNil struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// ExactTotal is the probability of exactly Goals total goals, or Goals or more when OrMore is set.
type ExactTotal struct {
	Goals       int     `json:"goals"`
	OrMore      bool    `json:"or_more,omitempty"`
	Probability float64 `json:"probability"`
}

// ExactTotals is the exact-total-goals partition.
type ExactTotals struct {
	Totals     []ExactTotal `json:"totals"`
	Degenerate bool         `json:"degenerate,omitempty"`
}

// ScoreProbability is the raw grid probability of one scoreline.
type ScoreProbability struct {
	Home        int     `json:"home"`
	Away        int     `json:"away"`
	Probability float64 `json:"probability"`
}

// Markets is the full, closed set of markets derived from one grid.
type Markets struct {
	MatchResult      ThreeWay           `json:"match_result"`
	BothTeamsToScore BothTeamsToScore   `json:"both_teams_to_score"`
	OverUnder        []TotalLine        `json:"over_under"`
	HalfTime         HalfTime           `json:"half_time"`
	DoubleChance     DoubleChance       `json:"double_chance"`
	AsianHandicap    []HandicapLine     `json:"asian_handicap"`
	WinToNil         WinToNil           `json:"win_to_nil"`
	ExactTotal       ExactTotals        `json:"exact_total"`
	ExactScores      []ScoreProbability `json:"exact_scores"`
}

// Degenerate reports whether any market fell back to a neutral distribution.
func (m Markets) Degenerate() bool {
	if m.MatchResult.Degenerate || m.BothTeamsToScore.Degenerate || m.ExactTotal.Degenerate {
		return true
	}
	if m.HalfTime.MatchResult.Degenerate || m.HalfTime.BothTeamsToScore.Degenerate {
		return true
	}
	for _, l := range m.OverUnder {
		if l.Degenerate {
			return true
		}
	}
	for _, l := range m.HalfTime.OverUnder {
		if l.Degenerate {
			return true
		}
	}
	for _, l := range m.AsianHandicap {
		if l.Degenerate {
			return true
		}
	}
	return false
}

func usableMass(m float64) bool {
	return m > degenerateMass && !math.IsInf(m, 0) && !math.IsNaN(m)
}

func normalizeTwo(a, b float64) (float64, float64, bool) {
	total := a + b
	if !usableMass(total) {
		return 0.5, 0.5, true
	}
	return a / total, b / total, false
}

func matchResult(g ScoreGrid) ThreeWay {
	var home, draw, away float64
	g.Each(func(h, a int, p float64) {
		switch {
		case h > a:
			home += p
		case h == a:
			draw += p
		default:
			away += p
		}
	})
	total := home + draw + away
	if !usableMass(total) {
		return ThreeWay{Home: 0.33, Draw: 0.34, Away: 0.33, Degenerate: true}
	}
	return ThreeWay{Home: home / total, Draw: draw / total, Away: away / total}
}

func bothTeamsToScore(g ScoreGrid) BothTeamsToScore {
	var yes, no float64
	g.Each(func(h, a int, p float64) {
		if h > 0 && a > 0 {
			yes += p
		} else {
			no += p
		}
	})
	y, n, deg := normalizeTwo(yes, no)
	return BothTeamsToScore{Yes: y, No: n, Degenerate: deg}
}

func overUnder(g ScoreGrid, lines []float64) []TotalLine {
	out := make([]TotalLine, 0, len(lines))
	for _, line := range lines {
		var over, under float64
		g.Each(func(h, a int, p float64) {
			if float64(h+a) > line {
				over += p
			} else {
				under += p
			}
		})
		o, u, deg := normalizeTwo(over, under)
		out = append(out, TotalLine{Line: line, Over: o, Under: u, Degenerate: deg})
	}
	return out
}

func doubleChance(r ThreeWay) DoubleChance {
	return DoubleChance{
		HomeOrDraw: r.Home + r.Draw,
		HomeOrAway: r.Home + r.Away,
		DrawOrAway: r.Draw + r.Away,
	}
}

func asianHandicap(g ScoreGrid, lines []float64) []HandicapLine {
	out := make([]HandicapLine, 0, len(lines))
	for _, line := range lines {
		var home, away float64
		g.Each(func(h, a int, p float64) {
			diff := float64(h-a) + line
			switch {
			case diff > 0:
				home += p
			case diff < 0:
				away += p
			}
		})
		hp, ap, deg := normalizeTwo(home, away)
		out = append(out, HandicapLine{Line: line, Home: hp, Away: ap, Degenerate: deg})
	}
	return out
}

// winToNil is normalised by the whole grid mass, the same mass that GG/NG uses,
// so home+away never exceeds NG.
func winToNil(g ScoreGrid) WinToNil {
	var home, away float64
	g.Each(func(h, a int, p float64) {
		switch {
		case h > 0 && a == 0:
			home += p
		case a > 0 && h == 0:
			away += p
		}
	})
	total := g.Total()
	if !usableMass(total) {
		return WinToNil{}
	}
	return WinToNil{Home: home / total, Away: away / total}
}

func exactTotals(g ScoreGrid, max int) ExactTotals {
	if max < 1 {
		max = 1
	}
	mass := make([]float64, max+1)
	g.Each(func(h, a int, p float64) {
		n := h + a
		if n > max {
			n = max
		}
		mass[n] += p
	})
	total := 0.0
	for _, m := range mass {
		total += m
	}
	deg := !usableMass(total)
	out := ExactTotals{Totals: make([]ExactTotal, 0, max+1), Degenerate: deg}
	for n, m := range mass {
		p := 1 / float64(max+1)
		if !deg {
			p = m / total
		}
		out.Totals = append(out.Totals, ExactTotal{Goals: n, OrMore: n == max, Probability: p})
	}
	return out
}

// exactScores keeps the grid's own joint values, sorted by probability. A
// positive window limits the listing to scorelines with both sides <= window.
func exactScores(g ScoreGrid, window int) []ScoreProbability {
	var out []ScoreProbability
	g.Each(func(h, a int, p float64) {
		if window > 0 && (h > window || a > window) {
			return
		}
		out = append(out, ScoreProbability{Home: h, Away: a, Probability: p})
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		if out[i].Home != out[j].Home {
			return out[i].Home < out[j].Home
		}
		return out[i].Away < out[j].Away
	})
	return out
}

// HalfTimeFactor is the share of the full-time rate expected in the first half.
// High-scoring matches front-load more of their goals.
func HalfTimeFactor(totalRate float64) float64 {
	switch {
	case totalRate < 2.0:
		return 0.42
	case totalRate < 2.5:
		return 0.44
	case totalRate < 3.0:
		return 0.45
	case totalRate < 3.5:
		return 0.46
	case totalRate < 4.0:
		return 0.47
	default:
		return 0.48
	}
}

// minHalfTimeRate keeps first-half rates strictly positive.
const minHalfTimeRate = 0.01

func halfTimeRates(full ScoringRates) (ScoringRates, float64) {
	f := HalfTimeFactor(full.Sum())
	return ScoringRates{
		Home: math.Max(full.Home*f, minHalfTimeRate),
		Away: math.Max(full.Away*f, minHalfTimeRate),
	}, f
}
