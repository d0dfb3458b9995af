package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Vodeneev/linecalc/internal/calculator"
	"github.com/Vodeneev/linecalc/internal/engine"
)

type FormArgs struct {
	FormFactor       float64 `json:"form_factor" jsonschema:"Recent form in [0, 1], 1 means all recent games won"`
	Variance         float64 `json:"variance" jsonschema:"Variance of recent results, non-negative"`
	GoalsScoredAvg   float64 `json:"goals_scored_avg" jsonschema:"Average goals scored over recent matches"`
	GoalsConcededAvg float64 `json:"goals_conceded_avg" jsonschema:"Average goals conceded over recent matches"`
}

type ComputeArgs struct {
	Spread        float64   `json:"spread" jsonschema:"Current home handicap line, negative when home is favoured (required)"`
	Total         float64   `json:"total" jsonschema:"Current goals total line (required)"`
	OpeningSpread *float64  `json:"opening_spread,omitempty" jsonschema:"Opening handicap line (default: current)"`
	OpeningTotal  *float64  `json:"opening_total,omitempty" jsonschema:"Opening total line (default: current)"`
	HomeForm      *FormArgs `json:"home_form,omitempty" jsonschema:"Optional home team form"`
	AwayForm      *FormArgs `json:"away_form,omitempty" jsonschema:"Optional away team form"`
}

type MatchArgs struct {
	HomeTeam  string `json:"home_team" jsonschema:"Home team name (required)"`
	AwayTeam  string `json:"away_team" jsonschema:"Away team name (required)"`
	StartTime string `json:"start_time,omitempty" jsonschema:"Kick-off time, RFC3339"`
}

type RecordArgs struct {
	HomeTeam  string  `json:"home_team" jsonschema:"Home team name (required)"`
	AwayTeam  string  `json:"away_team" jsonschema:"Away team name (required)"`
	StartTime string  `json:"start_time,omitempty" jsonschema:"Kick-off time, RFC3339"`
	Spread    float64 `json:"spread" jsonschema:"Handicap line (required)"`
	Total     float64 `json:"total" jsonschema:"Goals total line (required)"`
	Source    string  `json:"source,omitempty" jsonschema:"Bookmaker or client reporting the line"`
}

type NoArgs struct{}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// newServer registers the calculator tools on an MCP server backed by client.
func newServer(client *calculator.Client, registry *[]toolInfo) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "linecalc-mcp",
			Version: "0.1.0",
		},
		nil,
	)

	addTool(server, registry, &mcp.Tool{
		Name:        "compute_probabilities",
		Description: "Match outcome probabilities (1X2, totals, both teams to score, handicaps, exact scores, half time) implied by a handicap and total line",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ComputeArgs) (*mcp.CallToolResult, any, error) {
		preq := computeRequest(args)
		resp, err := client.Probabilities(ctx, preq)
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(json.MarshalIndent(resp.Report, "", "  "))
	})

	addTool(server, registry, &mcp.Tool{
		Name:        "list_corrections",
		Description: "Grid corrections enabled on the calculator and all available ones",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {
		resp, err := client.Corrections(ctx)
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(json.MarshalIndent(resp, "", "  "))
	})

	addTool(server, registry, &mcp.Tool{
		Name:        "record_line",
		Description: "Record a line snapshot for a match; returns the report against its opening line",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RecordArgs) (*mcp.CallToolResult, any, error) {
		match, err := MatchArgs{HomeTeam: args.HomeTeam, AwayTeam: args.AwayTeam, StartTime: args.StartTime}.ref()
		if err != nil {
			return toolError(err), nil, nil
		}
		rep, err := client.RecordLine(ctx, calculator.RecordLineRequest{
			Match:  match,
			Source: args.Source,
			Line:   &engine.MatchLine{Spread: args.Spread, Total: args.Total},
		})
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(json.MarshalIndent(rep, "", "  "))
	})

	addTool(server, registry, &mcp.Tool{
		Name:        "match_report",
		Description: "Opening against latest line report of a recorded match, with significant probability movements",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args MatchArgs) (*mcp.CallToolResult, any, error) {
		match, err := args.ref()
		if err != nil {
			return toolError(err), nil, nil
		}
		rep, err := client.MatchReport(ctx, match)
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(json.MarshalIndent(rep, "", "  "))
	})

	return server
}

func addTool[T any](server *mcp.Server, registry *[]toolInfo, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) {
	*registry = append(*registry, toolInfo{Name: tool.Name, Description: tool.Description})
	mcp.AddTool(server, tool, handler)
}

func computeRequest(args ComputeArgs) calculator.ProbabilitiesRequest {
	current := &engine.MatchLine{Spread: args.Spread, Total: args.Total}
	opening := *current
	if args.OpeningSpread != nil {
		opening.Spread = *args.OpeningSpread
	}
	if args.OpeningTotal != nil {
		opening.Total = *args.OpeningTotal
	}
	return calculator.ProbabilitiesRequest{
		Opening:  &opening,
		Current:  current,
		HomeForm: args.HomeForm.teamForm(),
		AwayForm: args.AwayForm.teamForm(),
	}
}

func (f *FormArgs) teamForm() *engine.TeamForm {
	if f == nil {
		return nil
	}
	return &engine.TeamForm{
		FormFactor:       f.FormFactor,
		Variance:         f.Variance,
		GoalsScoredAvg:   f.GoalsScoredAvg,
		GoalsConcededAvg: f.GoalsConcededAvg,
	}
}

func (a MatchArgs) ref() (calculator.MatchRef, error) {
	if a.HomeTeam == "" || a.AwayTeam == "" {
		return calculator.MatchRef{}, errors.New("home_team and away_team are required")
	}
	match := calculator.MatchRef{HomeTeam: a.HomeTeam, AwayTeam: a.AwayTeam}
	if a.StartTime != "" {
		t, err := time.Parse(time.RFC3339, a.StartTime)
		if err != nil {
			return calculator.MatchRef{}, fmt.Errorf("invalid start_time: %w", err)
		}
		match.StartTime = t
	}
	return match, nil
}

func toolJSON(res []byte, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(res)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
