package engine

import (
	"fmt"
	"strconv"
)

// Market identifies a market family.
type Market string

const (
	MarketMatchResult       Market = "1X2"
	MarketBothTeamsToScore  Market = "GG_NG"
	MarketOverUnder         Market = "Over_Under"
	MarketHalfTimeResult    Market = "HT_1X2"
	MarketHalfTimeBTTS      Market = "HT_GG_NG"
	MarketHalfTimeOverUnder Market = "HT_Over_Under"
	MarketDoubleChance      Market = "Double_Chance"
	MarketAsianHandicap     Market = "Asian_Handicap"
	MarketWinToNil          Market = "Win_to_Nil"
	MarketExactTotal        Market = "Exact_Total"
	MarketExactScore        Market = "Exact_Score"
)

// Entry is one labelled outcome of a market.
type Entry struct {
	Market      Market  `json:"market"`
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
}

// Entries flattens the markets into a stable, ordered list of labelled outcomes.
func (m Markets) Entries() []Entry {
	var out []Entry
	add := func(market Market, outcome string, p float64) {
		out = append(out, Entry{Market: market, Outcome: outcome, Probability: p})
	}

	add(MarketMatchResult, "1", m.MatchResult.Home)
	add(MarketMatchResult, "X", m.MatchResult.Draw)
	add(MarketMatchResult, "2", m.MatchResult.Away)
	add(MarketBothTeamsToScore, "GG", m.BothTeamsToScore.Yes)
	add(MarketBothTeamsToScore, "NG", m.BothTeamsToScore.No)
	for _, l := range m.OverUnder {
		add(MarketOverUnder, "Over "+formatLine(l.Line), l.Over)
		add(MarketOverUnder, "Under "+formatLine(l.Line), l.Under)
	}

	add(MarketHalfTimeResult, "HT 1", m.HalfTime.MatchResult.Home)
	add(MarketHalfTimeResult, "HT X", m.HalfTime.MatchResult.Draw)
	add(MarketHalfTimeResult, "HT 2", m.HalfTime.MatchResult.Away)
	add(MarketHalfTimeBTTS, "HT GG", m.HalfTime.BothTeamsToScore.Yes)
	add(MarketHalfTimeBTTS, "HT NG", m.HalfTime.BothTeamsToScore.No)
	for _, l := range m.HalfTime.OverUnder {
		add(MarketHalfTimeOverUnder, "HT Over "+formatLine(l.Line), l.Over)
		add(MarketHalfTimeOverUnder, "HT Under "+formatLine(l.Line), l.Under)
	}

	add(MarketDoubleChance, "1X", m.DoubleChance.HomeOrDraw)
	add(MarketDoubleChance, "12", m.DoubleChance.HomeOrAway)
	add(MarketDoubleChance, "X2", m.DoubleChance.DrawOrAway)

	for _, l := range m.AsianHandicap {
		add(MarketAsianHandicap, "AH "+formatHandicap(l.Line)+" Home", l.Home)
		add(MarketAsianHandicap, "AH "+formatHandicap(l.Line)+" Away", l.Away)
	}

	add(MarketWinToNil, "Home Win to Nil", m.WinToNil.Home)
	add(MarketWinToNil, "Away Win to Nil", m.WinToNil.Away)

	for _, t := range m.ExactTotal.Totals {
		if t.OrMore {
			add(MarketExactTotal, fmt.Sprintf("%d+", t.Goals), t.Probability)
			continue
		}
		add(MarketExactTotal, fmt.Sprintf("Exactly %d", t.Goals), t.Probability)
	}

	for _, s := range m.ExactScores {
		add(MarketExactScore, fmt.Sprintf("%d-%d", s.Home, s.Away), s.Probability)
	}
	return out
}

// Lookup returns the probability of a labelled outcome.
func (m Markets) Lookup(market Market, outcome string) (float64, bool) {
	for _, e := range m.Entries() {
		if e.Market == market && e.Outcome == outcome {
			return e.Probability, true
		}
	}
	return 0, false
}

func formatLine(l float64) string {
	return strconv.FormatFloat(l, 'f', 1, 64)
}

func formatHandicap(l float64) string {
	if l == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%+.1f", l)
}
