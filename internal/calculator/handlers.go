package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
	"github.com/Vodeneev/linecalc/internal/pkg/export"
	"github.com/Vodeneev/linecalc/internal/pkg/line"
	"github.com/Vodeneev/linecalc/internal/pkg/ratelimit"
	"github.com/Vodeneev/linecalc/internal/pkg/storage"
	"github.com/Vodeneev/linecalc/internal/pkg/validation"
)

// Report sources, used as the metrics label.
const (
	sourceLines = "lines"
	sourceOdds  = "odds"
	sourceMatch = "match"
)

var (
	validator = validation.NewValidator()
	sanitizer = validation.NewSanitizer()
	exporter  = export.NewExporter()
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Router builds the HTTP API of the calculator.
func (c *ProbabilityCalculator) Router(cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Probes and metrics are not rate limited
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	if c.metrics != nil {
		r.Handle("/metrics", c.metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			c.limiter = ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
			api.Use(c.limiter.Middleware(c.metrics.ObserveRateLimited))
		}

		api.Post("/probabilities", c.handleProbabilities)
		api.Post("/probabilities/from-odds", c.handleProbabilitiesFromOdds)
		api.Post("/matches/lines", c.handleRecordLine)
		api.Get("/matches/report", c.handleMatchReport)
		api.Get("/matches/history", c.handleLineHistory)
		api.Get("/corrections", c.handleCorrections)
	})

	return r
}

// handleProbabilities computes a report from explicit opening and current lines.
func (c *ProbabilityCalculator) handleProbabilities(w http.ResponseWriter, r *http.Request) {
	var req ProbabilitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if err := validator.ValidateLine("opening", req.Opening); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateLine("current", req.Current); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateForms(req.HomeForm, req.AwayForm); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c.respondReport(w, r, sourceLines, engine.Request{
		Opening:  *req.Opening,
		Current:  *req.Current,
		HomeForm: req.HomeForm,
		AwayForm: req.AwayForm,
	})
}

// handleProbabilitiesFromOdds reduces two bookmaker lines to their main spread
// and total and computes the report between them.
func (c *ProbabilityCalculator) handleProbabilitiesFromOdds(w http.ResponseWriter, r *http.Request) {
	var req OddsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if err := validateForms(req.HomeForm, req.AwayForm); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateMarkets(req.Opening.Markets); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("opening: %v", err))
		return
	}
	if err := validator.ValidateMarkets(req.Current.Markets); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("current: %v", err))
		return
	}
	opening, err := line.MainLine(req.Opening.Markets)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("opening: %v", err))
		return
	}
	current, err := line.MainLine(req.Current.Markets)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("current: %v", err))
		return
	}

	c.respondReport(w, r, sourceOdds, engine.Request{
		Opening:  opening,
		Current:  current,
		HomeForm: req.HomeForm,
		AwayForm: req.AwayForm,
	})
}

func (c *ProbabilityCalculator) respondReport(w http.ResponseWriter, r *http.Request, source string, req engine.Request) {
	rep, cached := c.Compute(r.Context(), req)
	c.metrics.ObserveReport(source)
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, exporter.ExportReport(rep)); err != nil {
			slog.Error("Failed to write CSV report", "error", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, ProbabilitiesResponse{
		Report:  rep,
		Entries: rep.Current.Markets.Entries(),
		Cached:  cached,
	})
}

// handleRecordLine stores a new line of a match and returns the report from its opening line.
func (c *ProbabilityCalculator) handleRecordLine(w http.ResponseWriter, r *http.Request) {
	var req RecordLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if err := validateForms(req.HomeForm, req.AwayForm); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Match = req.Match.WithTeamsFromName()
	req.Match.HomeTeam = sanitizer.SanitizeTeamName(req.Match.HomeTeam)
	req.Match.AwayTeam = sanitizer.SanitizeTeamName(req.Match.AwayTeam)
	req.Source = sanitizer.SanitizeSource(req.Source)

	var ln engine.MatchLine
	switch {
	case req.Line != nil:
		if err := validator.ValidateLine("line", req.Line); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ln = *req.Line
	case len(req.Markets) > 0:
		if err := validator.ValidateMarkets(req.Markets); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		mainLine, err := line.MainLine(req.Markets)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ln = mainLine
	default:
		respondError(w, http.StatusBadRequest, "line or markets is required")
		return
	}

	report, err := c.RecordLine(r.Context(), req.Match, ln, req.Source, req.HomeForm, req.AwayForm)
	if err != nil {
		if errors.Is(err, ErrMissingTeams) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to record line", "match", req.Match.Name(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to record line")
		return
	}
	c.metrics.ObserveReport(sourceMatch)
	respondJSON(w, http.StatusOK, report)
}

// handleMatchReport returns the report between the stored opening and latest lines.
func (c *ProbabilityCalculator) handleMatchReport(w http.ResponseWriter, r *http.Request) {
	match, err := matchFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := c.MatchReport(r.Context(), match)
	switch {
	case err == nil:
		c.metrics.ObserveReport(sourceMatch)
		respondJSON(w, http.StatusOK, report)
	case errors.Is(err, ErrMissingTeams):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "no lines recorded for match")
	default:
		slog.Error("Failed to build match report", "match", match.Name(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build match report")
	}
}

// handleLineHistory returns the latest recorded lines of a match, oldest first.
func (c *ProbabilityCalculator) handleLineHistory(w http.ResponseWriter, r *http.Request) {
	match, err := matchFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > maxHistoryLimit {
				n = maxHistoryLimit
			}
			limit = n
		}
	}

	history, err := c.LineHistory(r.Context(), match, limit)
	if err != nil {
		if errors.Is(err, ErrMissingTeams) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to load line history", "match", match.Name(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load line history")
		return
	}
	if history == nil {
		history = []storage.LineSnapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_key": match.Key(),
		"lines":     history,
	})
}

// handleCorrections lists the enabled and the available grid corrections.
func (c *ProbabilityCalculator) handleCorrections(w http.ResponseWriter, _ *http.Request) {
	enabled := c.Corrections()
	if enabled == nil {
		enabled = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{
		"enabled":   enabled,
		"available": engine.AvailableCorrections(),
	})
}

// validateForms rejects malformed form signals. Lines and forms are the only
// input rejected on content: the engine clamps whatever finite values reach it.
func validateForms(home, away *engine.TeamForm) error {
	if err := validator.ValidateForm("home", home); err != nil {
		return err
	}
	return validator.ValidateForm("away", away)
}

// matchFromQuery reads home and away, or a match name, and the optional RFC3339 start.
func matchFromQuery(r *http.Request) (MatchRef, error) {
	q := r.URL.Query()
	match := MatchRef{
		HomeTeam:  q.Get("home"),
		AwayTeam:  q.Get("away"),
		MatchName: q.Get("name"),
	}.WithTeamsFromName()
	match.HomeTeam = sanitizer.SanitizeTeamName(match.HomeTeam)
	match.AwayTeam = sanitizer.SanitizeTeamName(match.AwayTeam)
	if s := q.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return MatchRef{}, fmt.Errorf("invalid start: %w", err)
		}
		match.StartTime = t
	}
	return match, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
