package calculator

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
)

func newTestRouter(t *testing.T) (*ProbabilityCalculator, http.Handler) {
	t.Helper()
	c, _ := newTestCalculator(t, engine.DefaultOptions())
	cfg := config.Default().Server
	cfg.RateLimitRPS = 0
	return c, c.Router(cfg)
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHandleProbabilities(t *testing.T) {
	_, h := newTestRouter(t)

	body := `{"opening":{"spread":-0.5,"total":2.5},"current":{"spread":-0.75,"total":2.75},
		"home_form":{"form_factor":0.8,"variance":0.5,"goals_scored_avg":2,"goals_conceded_avg":1}}`
	rec := doRequest(h, http.MethodPost, "/api/v1/probabilities", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ProbabilitiesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, engine.MatchLine{Spread: -0.75, Total: 2.75}, resp.Report.Current.Line)
	assert.NotEqual(t, resp.Report.Current.LineRates, resp.Report.Current.Rates)
	require.NotEmpty(t, resp.Entries)
	assert.Equal(t, engine.MarketMatchResult, resp.Entries[0].Market)

	// Same inputs are served from the cache.
	rec = doRequest(h, http.MethodPost, "/api/v1/probabilities", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Cached)
}

func TestHandleProbabilities_BadInput(t *testing.T) {
	_, h := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"opening":`, "invalid request"},
		{"missing current", `{"opening":{"spread":0,"total":2.5}}`, "current line is required"},
		{"missing opening", `{"current":{"spread":0,"total":2.5}}`, "opening line is required"},
		{"overflow", `{"opening":{"spread":0,"total":1e400},"current":{"spread":0,"total":2.5}}`, "invalid request"},
		{"string number", `{"opening":{"spread":"NaN","total":2.5},"current":{"spread":0,"total":2.5}}`, "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/api/v1/probabilities", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.want)
		})
	}
}

func TestHandleProbabilities_CSV(t *testing.T) {
	_, h := newTestRouter(t)
	body := `{"opening":{"spread":-0.5,"total":2.5},"current":{"spread":-0.75,"total":2.5}}`

	rec := doRequest(h, http.MethodPost, "/api/v1/probabilities?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "market,outcome,opening,current,change_pp", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1X2,1,"))
}

func TestValidateForms(t *testing.T) {
	assert.NoError(t, validateForms(nil, nil))
	assert.NoError(t, validateForms(&engine.TeamForm{FormFactor: 0.5, Variance: 0.1, GoalsScoredAvg: 2}, nil))
	assert.NoError(t, validateForms(nil, &engine.TeamForm{Variance: -1}))
	assert.ErrorContains(t, validateForms(nil, &engine.TeamForm{Variance: math.Inf(1)}), "away form must be finite")
	assert.ErrorContains(t, validateForms(&engine.TeamForm{GoalsScoredAvg: math.NaN()}, nil), "home form must be finite")
}

const oddsBody = `{
	"opening": {"markets": [
		{"outcomes": [
			{"outcome_type": "handicap_home", "parameter": "-0.5", "odds": 1.95},
			{"outcome_type": "handicap_away", "parameter": "+0.5", "odds": 1.95},
			{"outcome_type": "total_over", "parameter": "2.5", "odds": 1.9},
			{"outcome_type": "total_under", "parameter": "2.5", "odds": 2.0}
		]}
	]},
	"current": {"markets": [
		{"outcomes": [
			{"outcome_type": "handicap_home", "parameter": "-1", "odds": 1.92},
			{"outcome_type": "handicap_away", "parameter": "+1", "odds": 1.98},
			{"outcome_type": "total_over", "parameter": "3", "odds": 1.95},
			{"outcome_type": "total_under", "parameter": "3", "odds": 1.95}
		]}
	]}
}`

func TestHandleProbabilitiesFromOdds(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/api/v1/probabilities/from-odds", oddsBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbabilitiesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, engine.MatchLine{Spread: -0.5, Total: 2.5}, resp.Report.Opening.Line)
	assert.Equal(t, engine.MatchLine{Spread: -1, Total: 3}, resp.Report.Current.Line)

	rec = doRequest(h, http.MethodPost, "/api/v1/probabilities/from-odds", `{"opening":{"markets":[]},"current":{"markets":[]}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "opening")
}

func TestHandleRecordLineAndReport(t *testing.T) {
	_, h := newTestRouter(t)

	first := `{"match":{"home_team":"Arsenal","away_team":"Chelsea","start_time":"2025-03-15T18:00:00Z"},"line":{"spread":-0.5,"total":2.5},"source":"pinnacle"}`
	rec := doRequest(h, http.MethodPost, "/api/v1/matches/lines", first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := `{"match":{"home_team":"Arsenal","away_team":"Chelsea","start_time":"2025-03-15T18:00:00Z"},"markets":[{"outcomes":[
		{"outcome_type":"handicap_home","parameter":"-1.25","odds":1.9},
		{"outcome_type":"handicap_away","parameter":"1.25","odds":1.9},
		{"outcome_type":"total_over","parameter":"2.75","odds":1.9},
		{"outcome_type":"total_under","parameter":"2.75","odds":1.9}]}]}`
	rec = doRequest(h, http.MethodPost, "/api/v1/matches/lines", second)
	require.Equal(t, http.StatusOK, rec.Code)

	var lr LineReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lr))
	assert.Equal(t, -0.5, lr.Opening.Spread)
	assert.Equal(t, "Pinnacle", lr.Opening.Source)
	assert.Equal(t, -1.25, lr.Current.Spread)
	assert.NotEmpty(t, lr.Movements)

	q := url.Values{"home": {"FC Arsenal"}, "away": {"Chelsea"}, "start": {"2025-03-15T18:00:00Z"}}
	rec = doRequest(h, http.MethodGet, "/api/v1/matches/report?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lr))
	assert.Equal(t, engine.MatchLine{Spread: -0.5, Total: 2.5}, lr.Report.Opening.Line)
	assert.Equal(t, engine.MatchLine{Spread: -1.25, Total: 2.75}, lr.Report.Current.Line)

	rec = doRequest(h, http.MethodGet, "/api/v1/matches/history?limit=1&"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		MatchKey string `json:"match_key"`
		Lines    []struct {
			Spread float64 `json:"spread"`
		} `json:"lines"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Equal(t, "arsenal|chelsea|2025-03-15T18:00:00Z", history.MatchKey)
	require.Len(t, history.Lines, 1)
	assert.Equal(t, -1.25, history.Lines[0].Spread)
}

func TestHandleRecordLine_BadInput(t *testing.T) {
	_, h := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no line", `{"match":{"home_team":"A","away_team":"B"}}`, "line or markets is required"},
		{"no teams", `{"match":{"home_team":"A"},"line":{"spread":0,"total":2.5}}`, "teams are required"},
		{"no main line", `{"match":{"home_team":"A","away_team":"B"},"markets":[{"outcomes":[{"outcome_type":"home_win","odds":2}]}]}`, "no main line"},
		{"unknown outcome", `{"match":{"home_team":"A","away_team":"B"},"markets":[{"outcomes":[{"outcome_type":"corners_over","odds":2}]}]}`, "invalid outcome type"},
		{"negative odds", `{"match":{"home_team":"A","away_team":"B"},"markets":[{"outcomes":[{"outcome_type":"draw","odds":-2}]}]}`, "odds cannot be negative"},
		{"bad parameter", `{"match":{"home_team":"A","away_team":"B"},"markets":[{"outcomes":[{"outcome_type":"total_over","parameter":"x","odds":1.9}]}]}`, "invalid parameter"},
		{"blank teams", `{"match":{"home_team":"  ","away_team":"B"},"line":{"spread":0,"total":2.5}}`, "teams are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/api/v1/matches/lines", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.want)
		})
	}
}

func TestHandleMatchReport_Errors(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doRequest(h, http.MethodGet, "/api/v1/matches/report?home=A&away=B", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodGet, "/api/v1/matches/report?home=A", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodGet, "/api/v1/matches/report?home=A&away=B&start=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "invalid start")
}

func TestHandleCorrections(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doRequest(h, http.MethodGet, "/api/v1/corrections", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CorrectionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Enabled)
	assert.NotNil(t, resp.Enabled)
	assert.Equal(t, engine.AvailableCorrections(), resp.Available)
}

func TestProbesAndMetrics(t *testing.T) {
	_, h := newTestRouter(t)

	rec := doRequest(h, http.MethodGet, "/ping", "")
	assert.Equal(t, "pong\n", rec.Body.String())
	rec = doRequest(h, http.MethodGet, "/health", "")
	assert.Equal(t, "ok\n", rec.Body.String())

	doRequest(h, http.MethodPost, "/api/v1/probabilities", `{"opening":{"spread":0,"total":2.5},"current":{"spread":0,"total":2.5}}`)
	rec = doRequest(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `linecalc_reports_total{source="lines"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	c, _ := newTestCalculator(t, engine.DefaultOptions())
	cfg := config.Default().Server
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	h := c.Router(cfg)

	rec := doRequest(h, http.MethodGet, "/api/v1/corrections", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(h, http.MethodGet, "/api/v1/corrections", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Probes are outside the limited group.
	rec = doRequest(h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Clients())
}

func TestHandleRecordLine_MatchNameFormsAndHalfMarkets(t *testing.T) {
	_, h := newTestRouter(t)

	body := `{"match":{"name":"Porto vs Benfica","start_time":"2025-05-10T19:00:00Z"},
		"home_form":{"form_factor":0.8,"variance":0.2,"goals_scored_avg":2.2,"goals_conceded_avg":0.8},
		"markets":[
		{"event_type":"first_half","outcomes":[
			{"outcome_type":"handicap_home","parameter":"0","odds":1.9},
			{"outcome_type":"handicap_away","parameter":"0","odds":1.9},
			{"outcome_type":"total_over","parameter":"1","odds":1.9},
			{"outcome_type":"total_under","parameter":"1","odds":1.9}]},
		{"event_type":"main_match","outcomes":[
			{"outcome_type":"handicap_home","parameter":"-0.5","odds":1.9},
			{"outcome_type":"handicap_away","parameter":"+0.5","odds":1.9},
			{"outcome_type":"total_over","parameter":"2.5","odds":1.9},
			{"outcome_type":"total_under","parameter":"2.5","odds":1.9}]}]}`
	rec := doRequest(h, http.MethodPost, "/api/v1/matches/lines", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var recorded LineReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recorded))
	assert.Equal(t, "Porto", recorded.Match.HomeTeam)
	assert.Equal(t, "Benfica", recorded.Match.AwayTeam)
	assert.Equal(t, engine.MatchLine{Spread: -0.5, Total: 2.5}, recorded.Report.Current.Line)
	require.NotNil(t, recorded.Current.HomeForm)

	q := url.Values{"name": {"Porto - Benfica"}, "start": {"2025-05-10T19:00:00Z"}}
	rec = doRequest(h, http.MethodGet, "/api/v1/matches/report?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report LineReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, recorded.Report.Current.Rates, report.Report.Current.Rates)
	assert.Equal(t, recorded.Report.Current.Markets.MatchResult, report.Report.Current.Markets.MatchResult)
}
