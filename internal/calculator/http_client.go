package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the calculator HTTP API. Used by the Telegram bot and the MCP server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the calculator API
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}

	// Ensure baseURL doesn't end with /
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Probabilities posts explicit lines to /api/v1/probabilities.
func (c *Client) Probabilities(ctx context.Context, req ProbabilitiesRequest) (*ProbabilitiesResponse, error) {
	var resp ProbabilitiesResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/probabilities", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProbabilitiesFromOdds posts bookmaker lines to /api/v1/probabilities/from-odds.
func (c *Client) ProbabilitiesFromOdds(ctx context.Context, req OddsRequest) (*ProbabilitiesResponse, error) {
	var resp ProbabilitiesResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/probabilities/from-odds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CorrectionsResponse is the body of GET /api/v1/corrections.
type CorrectionsResponse struct {
	Enabled   []string `json:"enabled"`
	Available []string `json:"available"`
}

// Corrections fetches the enabled and available grid corrections.
func (c *Client) Corrections(ctx context.Context) (*CorrectionsResponse, error) {
	var resp CorrectionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/corrections", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordLine posts a line snapshot to /api/v1/matches/lines.
func (c *Client) RecordLine(ctx context.Context, req RecordLineRequest) (*LineReport, error) {
	var resp LineReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/matches/lines", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchReport fetches the opening against latest report of a recorded match.
func (c *Client) MatchReport(ctx context.Context, match MatchRef) (*LineReport, error) {
	q := url.Values{}
	q.Set("home", match.HomeTeam)
	q.Set("away", match.AwayTeam)
	if match.MatchName != "" {
		q.Set("name", match.MatchName)
	}
	if !match.StartTime.IsZero() {
		q.Set("start", match.StartTime.UTC().Format(time.RFC3339))
	}
	var resp LineReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/matches/report?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c == nil {
		return fmt.Errorf("HTTP client is not configured")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	// Create request with context
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call calculator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("calculator returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
