// Package calculator is the service layer around the probability engine: it
// caches reports, keeps per-match line history, detects probability movements
// between the opening and the current line and serves everything over HTTP.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/metrics"
	"github.com/Vodeneev/linecalc/internal/pkg/ratelimit"
	"github.com/Vodeneev/linecalc/internal/pkg/storage"
)

// ErrMissingTeams is returned when a match reference lacks a team name.
var ErrMissingTeams = errors.New("home and away teams are required")

// Config holds the calculator settings that are not dependencies.
type Config struct {
	Fingerprint     string        // engine settings fingerprint, part of every cache key
	ThresholdPP     float64       // alert threshold in percentage points; 0 disables movement detection
	CleanupInterval time.Duration // how often snapshots of started matches are removed; 0 disables
}

// ProbabilityCalculator computes reports and tracks line history of matches.
type ProbabilityCalculator struct {
	engine   *engine.Engine
	cache    storage.ReportCache // optional
	lines    storage.LineStore
	notifier Notifier // optional
	metrics  *metrics.Registry
	cfg      Config

	breaker *gobreaker.CircuitBreaker
	limiter *ratelimit.Limiter // set by Router
	now     func() time.Time
}

// NewProbabilityCalculator wires a calculator. cache and notifier may be nil;
// lines defaults to an in-memory store.
func NewProbabilityCalculator(e *engine.Engine, cache storage.ReportCache, lines storage.LineStore, notifier Notifier, m *metrics.Registry, cfg Config) *ProbabilityCalculator {
	if lines == nil {
		lines = storage.NewMemoryLineStore()
	}
	return &ProbabilityCalculator{
		engine:   e,
		cache:    cache,
		lines:    lines,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		breaker:  newCacheBreaker(),
		now:      time.Now,
	}
}

// newCacheBreaker trips after 5 consecutive cache failures and probes again after 30s.
// A cache miss is not a failure.
func newCacheBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "report-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storage.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Corrections lists the optional corrections the engine applies.
func (c *ProbabilityCalculator) Corrections() []string {
	return c.engine.Corrections()
}

// Compute returns the report for req and whether it came from the cache.
// Cache failures never fail the request: the engine result is served instead.
func (c *ProbabilityCalculator) Compute(ctx context.Context, req engine.Request) (engine.Report, bool) {
	key := ""
	if c.cache != nil {
		k, err := storage.ReportKey(c.cfg.Fingerprint, req)
		if err != nil {
			slog.Warn("Failed to build report cache key", "error", err)
		} else {
			key = k
		}
	}

	if key != "" {
		if rep, ok := c.cached(ctx, key); ok {
			return rep, true
		}
	}

	start := time.Now()
	rep := c.engine.Compute(req)
	degenerate := rep.Opening.Degenerate || rep.Current.Degenerate
	c.metrics.ObserveCompute(time.Since(start), degenerate)
	if degenerate {
		slog.Warn("Degenerate markets in report, neutral fallback used",
			"opening_spread", req.Opening.Spread, "opening_total", req.Opening.Total,
			"current_spread", req.Current.Spread, "current_total", req.Current.Total)
	}

	if key != "" {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.cache.Set(ctx, key, &rep)
		})
		if err != nil {
			slog.Warn("Failed to store report in cache", "error", err)
		}
	}
	return rep, false
}

func (c *ProbabilityCalculator) cached(ctx context.Context, key string) (engine.Report, bool) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.cache.Get(ctx, key)
	})
	switch {
	case err == nil:
		c.metrics.ObserveCache(metrics.CacheHit)
		return *res.(*engine.Report), true
	case errors.Is(err, storage.ErrNotFound):
		c.metrics.ObserveCache(metrics.CacheMiss)
	default:
		c.metrics.ObserveCache(metrics.CacheError)
		slog.Warn("Report cache lookup failed", "error", err)
	}
	return engine.Report{}, false
}

// RecordLine appends a line snapshot for the match and returns the report from
// its opening line to this one. The first line recorded for a match is its
// opening line. The forms are stored with the snapshot. Detected movements
// are handed to the notifier.
func (c *ProbabilityCalculator) RecordLine(ctx context.Context, match MatchRef, ln engine.MatchLine, source string, home, away *engine.TeamForm) (*LineReport, error) {
	match = match.WithTeamsFromName()
	key := match.Key()
	if key == "" {
		return nil, ErrMissingTeams
	}

	snap := storage.LineSnapshot{
		MatchKey:   key,
		HomeTeam:   match.HomeTeam,
		AwayTeam:   match.AwayTeam,
		StartTime:  match.StartTime,
		Spread:     ln.Spread,
		Total:      ln.Total,
		HomeForm:   home,
		AwayForm:   away,
		Source:     source,
		RecordedAt: c.now(),
	}
	if err := c.lines.AppendLine(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to record line: %w", err)
	}
	c.metrics.ObserveLineSnapshot()

	opening, err := c.lines.OpeningLine(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load opening line: %w", err)
	}

	report := c.buildLineReport(ctx, match, key, opening, snap)
	c.notify(ctx, report)
	return report, nil
}

// MatchReport recomputes the report of a match from its stored opening and
// latest lines, with the forms stored alongside the latest line.
func (c *ProbabilityCalculator) MatchReport(ctx context.Context, match MatchRef) (*LineReport, error) {
	match = match.WithTeamsFromName()
	key := match.Key()
	if key == "" {
		return nil, ErrMissingTeams
	}
	opening, err := c.lines.OpeningLine(ctx, key)
	if err != nil {
		return nil, err
	}
	latest, err := c.lines.LatestLine(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.buildLineReport(ctx, match, key, opening, latest), nil
}

// LineHistory returns up to limit latest snapshots of a match, oldest first.
func (c *ProbabilityCalculator) LineHistory(ctx context.Context, match MatchRef, limit int) ([]storage.LineSnapshot, error) {
	key := match.WithTeamsFromName().Key()
	if key == "" {
		return nil, ErrMissingTeams
	}
	return c.lines.LineHistory(ctx, key, limit)
}

// buildLineReport applies the current snapshot's forms to both lines.
func (c *ProbabilityCalculator) buildLineReport(ctx context.Context, match MatchRef, key string, opening, current storage.LineSnapshot) *LineReport {
	rep, _ := c.Compute(ctx, engine.Request{
		Opening:  opening.Line(),
		Current:  current.Line(),
		HomeForm: current.HomeForm,
		AwayForm: current.AwayForm,
	})
	return &LineReport{
		Match:     match,
		MatchKey:  key,
		Opening:   opening,
		Current:   current,
		Report:    rep,
		Movements: DetectMovements(match, rep, c.cfg.ThresholdPP, c.now()),
	}
}

func (c *ProbabilityCalculator) notify(ctx context.Context, report *LineReport) {
	if c.notifier == nil || len(report.Movements) == 0 {
		return
	}
	if err := c.notifier.NotifyMovements(ctx, report, c.cfg.ThresholdPP); err != nil {
		slog.Warn("Failed to queue movement alert", "match", report.Match.Name(), "error", err)
		return
	}
	slog.Info("Probability movement detected",
		"match", report.Match.Name(),
		"movements", len(report.Movements),
		"top_outcome", report.Movements[0].Outcome,
		"top_change_pp", report.Movements[0].ChangePP)
}
