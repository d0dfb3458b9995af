package validation

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaces       = regexp.MustCompile(`\s+`)
)

const (
	maxTeamNameLength = 100
	maxSourceLength   = 50
)

// Sanitizer cleans free-text fields of incoming requests
type Sanitizer struct{}

// NewSanitizer creates a new sanitizer
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// SanitizeTeamName trims, removes control characters and collapses spaces.
func (s *Sanitizer) SanitizeTeamName(name string) string {
	sanitized := spaces.ReplaceAllString(name, " ")
	sanitized = controlChars.ReplaceAllString(sanitized, "")
	sanitized = strings.TrimSpace(spaces.ReplaceAllString(sanitized, " "))
	return truncateRunes(sanitized, maxTeamNameLength)
}

// SanitizeSource standardizes bookmaker names.
func (s *Sanitizer) SanitizeSource(source string) string {
	sanitized := strings.TrimSpace(controlChars.ReplaceAllString(source, ""))

	// Map common variations to standard names
	bookmakerMap := map[string]string{
		"fonbet":       "Fonbet",
		"bet365":       "Bet365",
		"pinnacle":     "Pinnacle",
		"betfair":      "Betfair",
		"sbobet":       "SBOBET",
		"williamhill":  "WilliamHill",
		"william hill": "WilliamHill",
		"leon":         "Leon",
		"olimp":        "Olimp",
		"zenit":        "Zenit",
		"marathonbet":  "Marathonbet",
	}
	if standard, exists := bookmakerMap[strings.ToLower(sanitized)]; exists {
		return standard
	}
	return truncateRunes(sanitized, maxSourceLength)
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
