package calculator

import (
	"math"
	"sort"
	"time"

	"github.com/Vodeneev/linecalc/internal/engine"
)

// DetectMovements compares the opening and current markets of a report outcome
// by outcome and returns those whose probability moved by at least thresholdPP
// percentage points, largest movements first. Outcomes present on only one side
// (exact scores leaving the window) are skipped.
func DetectMovements(match MatchRef, report engine.Report, thresholdPP float64, now time.Time) []ProbabilityMovement {
	if thresholdPP <= 0 {
		return nil
	}

	type outcomeKey struct {
		market  engine.Market
		outcome string
	}
	opening := make(map[outcomeKey]float64)
	for _, e := range report.Opening.Markets.Entries() {
		opening[outcomeKey{e.Market, e.Outcome}] = e.Probability
	}

	var movements []ProbabilityMovement
	for _, e := range report.Current.Markets.Entries() {
		prev, ok := opening[outcomeKey{e.Market, e.Outcome}]
		if !ok {
			continue
		}
		changePP := (e.Probability - prev) * 100
		if math.Abs(changePP) < thresholdPP {
			continue
		}
		movements = append(movements, ProbabilityMovement{
			MatchName:          match.Name(),
			StartTime:          match.StartTime,
			Market:             e.Market,
			Outcome:            e.Outcome,
			OpeningProbability: prev,
			CurrentProbability: e.Probability,
			ChangePP:           changePP,
			DetectedAt:         now,
		})
	}

	// Sort by absolute change descending (largest movements first)
	sort.SliceStable(movements, func(i, j int) bool {
		return math.Abs(movements[i].ChangePP) > math.Abs(movements[j].ChangePP)
	})
	return movements
}
