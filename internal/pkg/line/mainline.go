package line

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Vodeneev/linecalc/internal/engine"
)

// ErrNoMainLine is returned when the markets carry no complete handicap or total pair.
var ErrNoMainLine = errors.New("no main line")

// pricedLine is a two-way price at one line value.
type pricedLine struct {
	value float64
	first float64 // handicap_home or total_over
	other float64 // handicap_away or total_under
}

// balance is the distance of the vig-free first price from 50%.
func (p pricedLine) balance() float64 {
	a, b := 1/p.first, 1/p.other
	return math.Abs(a/(a+b) - 0.5)
}

// MainLine picks the main handicap and total: for each, the line whose two
// prices are closest to even once the margin is removed. The handicap is
// quoted from the home side and becomes the spread as is. Half markets are
// skipped.
func MainLine(markets []Market) (engine.MatchLine, error) {
	handicaps := make(map[float64]*pricedLine)
	totals := make(map[float64]*pricedLine)

	for _, m := range markets {
		if m.EventType != "" && m.EventType != EventMainMatch {
			continue
		}
		for _, o := range m.Outcomes {
			if !validOdds(o.Odds) {
				continue
			}
			v, err := ParseParameter(o.Parameter)
			if err != nil {
				continue
			}
			switch o.OutcomeType {
			case OutcomeHandicapHome:
				slot(handicaps, v).first = o.Odds
			case OutcomeHandicapAway:
				// The away side of a home -0.5 line is quoted as +0.5.
				slot(handicaps, -v).other = o.Odds
			case OutcomeTotalOver:
				slot(totals, v).first = o.Odds
			case OutcomeTotalUnder:
				slot(totals, v).other = o.Odds
			}
		}
	}

	spread, ok := mostBalanced(handicaps)
	if !ok {
		return engine.MatchLine{}, fmt.Errorf("%w: missing handicap pair", ErrNoMainLine)
	}
	total, ok := mostBalanced(totals)
	if !ok {
		return engine.MatchLine{}, fmt.Errorf("%w: missing total pair", ErrNoMainLine)
	}
	return engine.MatchLine{Spread: spread, Total: total}, nil
}

// ParseParameter reads a line value such as "2.5", "+1.5" or "-0,25".
func ParseParameter(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("empty parameter")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse parameter %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %q is not finite", s)
	}
	return v, nil
}

// FormatParameter prints a line value with at most two decimals and no
// trailing zeros: 2.5, -0.75, 3. Values that round to zero print as 0.
func FormatParameter(v float64) string {
	s := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v, 'f', 2, 64), "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func validOdds(o float64) bool {
	return o > 1 && !math.IsInf(o, 0)
}

func slot(m map[float64]*pricedLine, v float64) *pricedLine {
	if v == 0 {
		v = 0 // fold -0 into 0
	}
	p, ok := m[v]
	if !ok {
		p = &pricedLine{value: v}
		m[v] = p
	}
	return p
}

// mostBalanced returns the value of the most even complete pair. Ties go to
// the smaller absolute line, then to the lower value.
func mostBalanced(lines map[float64]*pricedLine) (float64, bool) {
	var complete []pricedLine
	for _, p := range lines {
		if p.first > 0 && p.other > 0 {
			complete = append(complete, *p)
		}
	}
	if len(complete) == 0 {
		return 0, false
	}
	sort.Slice(complete, func(i, j int) bool {
		bi, bj := complete[i].balance(), complete[j].balance()
		if bi != bj {
			return bi < bj
		}
		ai, aj := math.Abs(complete[i].value), math.Abs(complete[j].value)
		if ai != aj {
			return ai < aj
		}
		return complete[i].value < complete[j].value
	})
	return complete[0].value, true
}
