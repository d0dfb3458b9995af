package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
	"github.com/Vodeneev/linecalc/internal/pkg/export"
)

type computeOptions struct {
	configPath  string
	spreadOpen  float64
	totalOpen   float64
	spread      float64
	total       float64
	homeForm    string
	awayForm    string
	corrections []string
	format      string
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "probcalc",
		Short: "Football outcome probabilities from handicap and total lines",
		Long: `probcalc turns a bookmaker's main Asian handicap and goals total line into
expected goals and match outcome probabilities, without a running calculator service.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (engine section is used, defaults otherwise)")

	root.AddCommand(newComputeCmd(&configPath), newCorrectionsCmd(&configPath))
	return root
}

func newComputeCmd(configPath *string) *cobra.Command {
	opts := &computeOptions{}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute probabilities for an opening and a current line",
		Long: `Compute evaluates the opening and the current line independently and reports
the movement between them. Without --spread-open/--total-open the current line is
used as the opening line.

Examples:
  probcalc compute --spread -0.5 --total 2.5
  probcalc compute --spread-open -0.5 --total-open 2.5 --spread -0.75 --total 2.75
  probcalc compute --spread 0 --total 2.25 --home-form 0.4,0.2,1.8,0.9 --format table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			return runCompute(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.spreadOpen, "spread-open", 0, "Opening home handicap line (default: --spread)")
	f.Float64Var(&opts.totalOpen, "total-open", 0, "Opening goals total line (default: --total)")
	f.Float64Var(&opts.spread, "spread", 0, "Current home handicap line, negative when home is favoured")
	f.Float64Var(&opts.total, "total", 0, "Current goals total line")
	f.StringVar(&opts.homeForm, "home-form", "", "Home form as factor,variance,scored,conceded")
	f.StringVar(&opts.awayForm, "away-form", "", "Away form as factor,variance,scored,conceded")
	f.StringSliceVar(&opts.corrections, "corrections", nil, "Grid corrections to apply, overrides the config")
	f.StringVar(&opts.format, "format", "json", "Output format: json, table or csv")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newCorrectionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "corrections",
		Short: "List the available grid corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			enabled := make(map[string]bool, len(cfg.Engine.Corrections))
			for _, name := range cfg.Engine.Corrections {
				enabled[name] = true
			}
			out := cmd.OutOrStdout()
			for _, name := range engine.AvailableCorrections() {
				mark := " "
				if enabled[name] {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, name)
			}
			return nil
		},
	}
}

func runCompute(cmd *cobra.Command, opts *computeOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("corrections") {
		cfg.Engine.Corrections = opts.corrections
	}
	eng, err := cfg.Engine.NewEngine()
	if err != nil {
		return err
	}

	req := engine.Request{Current: engine.MatchLine{Spread: opts.spread, Total: opts.total}}
	req.Opening = req.Current
	if cmd.Flags().Changed("spread-open") {
		req.Opening.Spread = opts.spreadOpen
	}
	if cmd.Flags().Changed("total-open") {
		req.Opening.Total = opts.totalOpen
	}
	for _, v := range []float64{req.Opening.Spread, req.Opening.Total, req.Current.Spread, req.Current.Total} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("lines must be finite numbers")
		}
	}
	if req.HomeForm, err = parseForm(opts.homeForm); err != nil {
		return fmt.Errorf("home form: %w", err)
	}
	if req.AwayForm, err = parseForm(opts.awayForm); err != nil {
		return fmt.Errorf("away form: %w", err)
	}

	rep := eng.Compute(req)
	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "table":
		return export.WriteTable(cmd.OutOrStdout(), export.NewExporter().ExportReport(rep))
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), export.NewExporter().ExportReport(rep))
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseForm reads "factor,variance,scored,conceded". Empty means no form.
func parseForm(s string) (*engine.TeamForm, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	values := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		values[i] = v
	}
	return &engine.TeamForm{
		FormFactor:       values[0],
		Variance:         values[1],
		GoalsScoredAvg:   values[2],
		GoalsConcededAvg: values[3],
	}, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
