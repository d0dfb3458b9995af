package calculator

import (
	"strings"
	"time"
)

// MatchKey creates the key a match's line history is stored under.
// Format: "home|away|start_time". Returns "" when a team is missing.
func MatchKey(homeTeam, awayTeam string, startTime time.Time) string {
	home := normalizeTeam(homeTeam)
	away := normalizeTeam(awayTeam)
	if home == "" || away == "" {
		return ""
	}

	// Time rounding to tolerate small differences between sources.
	t := startTime.UTC().Truncate(30 * time.Minute)
	if startTime.IsZero() {
		// If no start time, key only by teams.
		return home + "|" + away
	}
	return home + "|" + away + "|" + t.Format(time.RFC3339)
}

// teamNamePrefixes are stripped so "FC Porto" and "Porto" share a key.
var teamNamePrefixes = []string{
	"r.c. ", "rc ", "k.s.k. ", "k.s. k. ", "ksk ", "f.c. ", "fc ", "f.k. ", "fk ",
	"c.f. ", "cf ", "s.c. ", "sc ", "s.s.c. ", "ssc ", "a.c. ", "ac ", "a.s. ", "as ",
	"u.d. ", "ud ", "c.d. ", "cd ", "n.k. ", "nk ", "b.c. ", "bc ", "bk ",
}

// normalizeTeam lowercases, strips one club prefix and collapses whitespace.
func normalizeTeam(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	for _, p := range teamNamePrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	// "|" separates key parts
	s = strings.ReplaceAll(s, "|", " ")
	return strings.Join(strings.Fields(s), " ")
}

// SplitTeamsFromName extracts team names from a match name.
// Supports separators: " vs ", " - ", " — ", " – "
func SplitTeamsFromName(name string) (string, string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	separators := []string{" vs ", " - ", " — ", " – "}
	for _, sep := range separators {
		parts := strings.Split(name, sep)
		if len(parts) != 2 {
			continue
		}
		home := strings.TrimSpace(parts[0])
		away := strings.TrimSpace(parts[1])
		if home == "" || away == "" {
			return "", "", false
		}
		return home, away, true
	}
	return "", "", false
}
