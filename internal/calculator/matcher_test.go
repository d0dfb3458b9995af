package calculator

import (
	"testing"
	"time"
)

func TestMatchKey_SameMatchDifferentBookmakerNames(t *testing.T) {
	start := time.Date(2026, 2, 13, 19, 30, 0, 0, time.UTC)

	k1 := MatchKey("Hades", "Heist", start)
	// Another source lists club prefixes and a start time a few minutes off.
	k2 := MatchKey("RC Hades", "K.S.K. Heist", start.Add(7*time.Minute))

	if k1 != k2 {
		t.Errorf("same match should have same key: %q vs %q", k1, k2)
	}
	if k1 != "hades|heist|2026-02-13T19:30:00Z" {
		t.Errorf("unexpected key %q", k1)
	}
}

func TestMatchKey_MissingParts(t *testing.T) {
	if got := MatchKey("", "Heist", time.Now()); got != "" {
		t.Errorf("missing home team should give empty key, got %q", got)
	}
	if got := MatchKey("Hades", "Heist", time.Time{}); got != "hades|heist" {
		t.Errorf("zero start time: got %q", got)
	}
}

func TestNormalizeTeam_StripPrefixes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RC Hades", "hades"},
		{"Hades", "hades"},
		{"K.S.K. Heist", "heist"},
		{"Heist", "heist"},
		{"FC Barcelona", "barcelona"},
		{"  rc   Hades  ", "hades"},
		{"Brighton | Hove", "brighton hove"},
	}
	for _, tt := range tests {
		got := normalizeTeam(tt.in)
		if got != tt.want {
			t.Errorf("normalizeTeam(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitTeamsFromName(t *testing.T) {
	tests := []struct {
		in         string
		home, away string
		ok         bool
	}{
		{"Arsenal vs Chelsea", "Arsenal", "Chelsea", true},
		{"Real Madrid - Getafe", "Real Madrid", "Getafe", true},
		{"Lazio — Roma", "Lazio", "Roma", true},
		{"Arsenal", "", "", false},
		{" vs Chelsea", "", "", false},
	}
	for _, tt := range tests {
		home, away, ok := SplitTeamsFromName(tt.in)
		if ok != tt.ok || home != tt.home || away != tt.away {
			t.Errorf("SplitTeamsFromName(%q) = %q, %q, %v", tt.in, home, away, ok)
		}
	}
}
