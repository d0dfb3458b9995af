package calculator

import (
	"time"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/line"
	"github.com/Vodeneev/linecalc/internal/pkg/storage"
)

// MatchRef identifies a match across line updates. Without team fields the
// teams are taken from MatchName, e.g. "Arsenal vs Chelsea".
type MatchRef struct {
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	MatchName string    `json:"name,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// WithTeamsFromName fills missing teams from the match name.
func (m MatchRef) WithTeamsFromName() MatchRef {
	if m.HomeTeam != "" || m.AwayTeam != "" || m.MatchName == "" {
		return m
	}
	if home, away, ok := SplitTeamsFromName(m.MatchName); ok {
		m.HomeTeam, m.AwayTeam = home, away
	}
	return m
}

// Key returns the normalised match key, "" if a team is missing.
func (m MatchRef) Key() string {
	return MatchKey(m.HomeTeam, m.AwayTeam, m.StartTime)
}

// Name returns "Home vs Away".
func (m MatchRef) Name() string {
	return m.HomeTeam + " vs " + m.AwayTeam
}

// ProbabilityMovement is a significant change of one outcome's probability
// between the opening and the current line of a match.
type ProbabilityMovement struct {
	MatchName          string        `json:"match_name"`
	StartTime          time.Time     `json:"start_time,omitempty"`
	Market             engine.Market `json:"market"`
	Outcome            string        `json:"outcome"`
	OpeningProbability float64       `json:"opening_probability"`
	CurrentProbability float64       `json:"current_probability"`
	ChangePP           float64       `json:"change_pp"` // percentage points, current - opening
	DetectedAt         time.Time     `json:"detected_at"`
}

// LineReport is the state of a match after a line update.
type LineReport struct {
	Match     MatchRef              `json:"match"`
	MatchKey  string                `json:"match_key"`
	Opening   storage.LineSnapshot  `json:"opening"`
	Current   storage.LineSnapshot  `json:"current"`
	Report    engine.Report         `json:"report"`
	Movements []ProbabilityMovement `json:"movements"`
}

// ProbabilitiesRequest is the body of POST /api/v1/probabilities.
type ProbabilitiesRequest struct {
	Opening  *engine.MatchLine `json:"opening"`
	Current  *engine.MatchLine `json:"current"`
	HomeForm *engine.TeamForm  `json:"home_form,omitempty"`
	AwayForm *engine.TeamForm  `json:"away_form,omitempty"`
}

// ProbabilitiesResponse carries a report plus the flattened current markets.
type ProbabilitiesResponse struct {
	Report  engine.Report  `json:"report"`
	Entries []engine.Entry `json:"entries"`
	Cached  bool           `json:"cached"`
}

// OddsLine is one bookmaker line, converted to a MatchLine via line.MainLine.
type OddsLine struct {
	Bookmaker string        `json:"bookmaker,omitempty"`
	Markets   []line.Market `json:"markets"`
}

// OddsRequest is the body of POST /api/v1/probabilities/from-odds.
type OddsRequest struct {
	Opening  OddsLine         `json:"opening"`
	Current  OddsLine         `json:"current"`
	HomeForm *engine.TeamForm `json:"home_form,omitempty"`
	AwayForm *engine.TeamForm `json:"away_form,omitempty"`
}

// RecordLineRequest is the body of POST /api/v1/matches/lines. Either Line or
// Markets must be set; Markets are reduced to their main line.
type RecordLineRequest struct {
	Match    MatchRef          `json:"match"`
	Source   string            `json:"source,omitempty"`
	Line     *engine.MatchLine `json:"line,omitempty"`
	Markets  []line.Market     `json:"markets,omitempty"`
	HomeForm *engine.TeamForm  `json:"home_form,omitempty"`
	AwayForm *engine.TeamForm  `json:"away_form,omitempty"`
}
