// Package line defines the bookmaker line model accepted by the service and
// reduces it to the main spread and total the engine works from.
package line

// Event types of a market. Only full-time markets carry the match line.
const (
	EventMainMatch  = "main_match"
	EventFirstHalf  = "first_half"
	EventSecondHalf = "second_half"
)

// Market is one betting market (main result, handicap, total).
type Market struct {
	EventType  string    `json:"event_type,omitempty"` // empty means main_match
	MarketName string    `json:"market_name,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is one priced selection within a market.
type Outcome struct {
	OutcomeType OutcomeType `json:"outcome_type"`
	Parameter   string      `json:"parameter,omitempty"` // line value: "2.5", "+1.5", "-0.25"
	Odds        float64     `json:"odds"`                // decimal
}

// OutcomeType is the standard outcome name shared by every bookmaker.
type OutcomeType string

const (
	OutcomeHomeWin      OutcomeType = "home_win"
	OutcomeDraw         OutcomeType = "draw"
	OutcomeAwayWin      OutcomeType = "away_win"
	OutcomeHandicapHome OutcomeType = "handicap_home"
	OutcomeHandicapAway OutcomeType = "handicap_away"
	OutcomeTotalOver    OutcomeType = "total_over"
	OutcomeTotalUnder   OutcomeType = "total_under"
)
