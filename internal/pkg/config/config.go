package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Vodeneev/linecalc/internal/engine"
)

type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Logging  LoggingConfig  `yaml:"logging"`
	MCP      MCPConfig      `yaml:"mcp"`
}

type EngineConfig struct {
	OverUnderLines    []float64        `yaml:"over_under_lines"`
	HalfTimeLines     []float64        `yaml:"half_time_lines"`
	HandicapLines     []float64        `yaml:"handicap_lines"`
	ExactScoreWindow  int              `yaml:"exact_score_window"` // 0 lists the whole grid
	ExactTotalMax     int              `yaml:"exact_total_max"`
	MaxFormAdjustment float64          `yaml:"max_form_adjustment"`
	Corrections       []string         `yaml:"corrections"` // optional grid corrections, applied in order
	CorrectionParams  CorrectionParams `yaml:"correction_params"`
}

type CorrectionParams struct {
	OverdispersionDelta float64 `yaml:"overdispersion_delta"`
	DiagonalInflation   float64 `yaml:"diagonal_inflation"`
	SmoothingWeight     float64 `yaml:"smoothing_weight"`
	PriorHomeRate       float64 `yaml:"prior_home_rate"`
	PriorAwayRate       float64 `yaml:"prior_away_rate"`
	ZeroInflation       float64 `yaml:"zero_inflation"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RateLimitRPS      float64       `yaml:"rate_limit_rps"` // per client; 0 disables the limiter
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"` // removal of started matches' lines; 0 disables
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"` // empty disables the report cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty keeps line snapshots in memory
}

type AlertsConfig struct {
	TelegramBotToken string  `yaml:"telegram_bot_token"`
	TelegramChatID   int64   `yaml:"telegram_chat_id"`
	ThresholdPP      float64 `yaml:"threshold_pp"` // probability move in percentage points that triggers an alert
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional JSON sink
}

type MCPConfig struct {
	Addr          string `yaml:"addr"`
	Path          string `yaml:"path"`
	CalculatorURL string `yaml:"calculator_url"`
}

// Default returns the configuration used for every field the YAML file leaves out.
func Default() *Config {
	opts := engine.DefaultOptions()
	params := engine.DefaultCorrectionParams()
	return &Config{
		Engine: EngineConfig{
			OverUnderLines:    opts.OverUnderLines,
			HalfTimeLines:     opts.HalfTimeLines,
			HandicapLines:     opts.HandicapLines,
			ExactScoreWindow:  opts.ExactScoreWindow,
			ExactTotalMax:     opts.ExactTotalMax,
			MaxFormAdjustment: opts.MaxFormAdjustment,
			CorrectionParams: CorrectionParams{
				OverdispersionDelta: params.OverdispersionDelta,
				DiagonalInflation:   params.DiagonalInflation,
				SmoothingWeight:     params.SmoothingWeight,
				PriorHomeRate:       params.PriorRates.Home,
				PriorAwayRate:       params.PriorRates.Away,
				ZeroInflation:       params.ZeroInflation,
			},
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    10 * time.Second,
			RateLimitRPS:      20,
			RateLimitBurst:    40,
			AllowedOrigins:    []string{"*"},
			CleanupInterval:   10 * time.Minute,
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Alerts: AlertsConfig{
			ThresholdPP: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Addr:          ":8090",
			Path:          "/mcp",
			CalculatorURL: "http://localhost:8080",
		},
	}
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Options resolves the engine section, including the named corrections.
func (c EngineConfig) Options() (engine.Options, error) {
	params := engine.CorrectionParams{
		OverdispersionDelta: c.CorrectionParams.OverdispersionDelta,
		DiagonalInflation:   c.CorrectionParams.DiagonalInflation,
		SmoothingWeight:     c.CorrectionParams.SmoothingWeight,
		PriorRates: engine.ScoringRates{
			Home: c.CorrectionParams.PriorHomeRate,
			Away: c.CorrectionParams.PriorAwayRate,
		},
		ZeroInflation: c.CorrectionParams.ZeroInflation,
	}
	corrections, err := engine.CorrectionsByName(c.Corrections, params)
	if err != nil {
		return engine.Options{}, fmt.Errorf("engine corrections: %w", err)
	}

	return engine.Options{
		OverUnderLines:    c.OverUnderLines,
		HalfTimeLines:     c.HalfTimeLines,
		HandicapLines:     c.HandicapLines,
		ExactScoreWindow:  c.ExactScoreWindow,
		ExactTotalMax:     c.ExactTotalMax,
		MaxFormAdjustment: c.MaxFormAdjustment,
		Corrections:       corrections,
	}, nil
}

// NewEngine builds an engine from the engine section.
func (c EngineConfig) NewEngine() (*engine.Engine, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	e, err := engine.New(opts)
	if err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	return e, nil
}

// Fingerprint identifies the engine settings. Reports computed under different
// settings never share a cache key.
func (c EngineConfig) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
