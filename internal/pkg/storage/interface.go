package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Vodeneev/linecalc/internal/engine"
)

// ErrNotFound is returned when a key or match has nothing stored.
var ErrNotFound = errors.New("not found")

// ReportCache stores computed reports keyed by their inputs.
type ReportCache interface {
	// Get returns the cached report or ErrNotFound
	Get(ctx context.Context, key string) (*engine.Report, error)

	// Set stores the report under key
	Set(ctx context.Context, key string, report *engine.Report) error

	Close() error
}

// LineSnapshot is one observed market line for a match. Only inputs are stored,
// probabilities are always recomputed. A zero StartTime means the start is unknown.
type LineSnapshot struct {
	MatchKey   string           `json:"match_key"`
	HomeTeam   string           `json:"home_team"`
	AwayTeam   string           `json:"away_team"`
	StartTime  time.Time        `json:"start_time"`
	Spread     float64          `json:"spread"`
	Total      float64          `json:"total"`
	HomeForm   *engine.TeamForm `json:"home_form,omitempty"` // form reported with the line
	AwayForm   *engine.TeamForm `json:"away_form,omitempty"`
	Source     string           `json:"source,omitempty"` // bookmaker or client that reported the line
	RecordedAt time.Time        `json:"recorded_at"`
}

// Line returns the snapshot's market line.
func (s LineSnapshot) Line() engine.MatchLine {
	return engine.MatchLine{Spread: s.Spread, Total: s.Total}
}

// LineStore keeps the line history of each match. The earliest snapshot is the opening line.
type LineStore interface {
	// AppendLine records one snapshot
	AppendLine(ctx context.Context, snapshot LineSnapshot) error

	// OpeningLine returns the earliest snapshot or ErrNotFound
	OpeningLine(ctx context.Context, matchKey string) (LineSnapshot, error)

	// LatestLine returns the most recent snapshot or ErrNotFound
	LatestLine(ctx context.Context, matchKey string) (LineSnapshot, error)

	// LineHistory returns up to limit most recent snapshots, oldest first.
	// A limit <= 0 returns the whole history.
	LineHistory(ctx context.Context, matchKey string, limit int) ([]LineSnapshot, error)

	// CleanStartedMatches deletes snapshots of matches that started before now.
	// Matches without a start time are kept.
	CleanStartedMatches(ctx context.Context, now time.Time) (int64, error)

	Close() error
}
