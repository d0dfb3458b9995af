package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Vodeneev/linecalc/internal/calculator"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
	"github.com/Vodeneev/linecalc/internal/pkg/logging"
	"github.com/Vodeneev/linecalc/internal/pkg/metrics"
	"github.com/Vodeneev/linecalc/internal/pkg/storage"
)

const (
	defaultConfigPath = "configs/production.yaml"
)

func main() {
	fmt.Println("Starting Line Probability Calculator...")

	var configPath string
	var addr string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.StringVar(&addr, "addr", "", "HTTP listen address, overrides server.addr (e.g. :8080)")
	flag.Parse()

	fmt.Printf("Loading config from: %s\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	_, logCloser, err := logging.SetupLogger(cfg.Logging, "calculator")
	if err != nil {
		log.Printf("Warning: failed to setup logging: %v, continuing with default logger", err)
	} else {
		defer logCloser.Close()
		slog.Info("Logging initialized", "service", "calculator")
	}

	applyEnvOverrides(cfg)

	eng, err := cfg.Engine.NewEngine()
	if err != nil {
		log.Fatalf("calculator: invalid engine config: %v", err)
	}
	slog.Info("Engine configured", "corrections", eng.Corrections(), "fingerprint", cfg.Engine.Fingerprint())

	reg := metrics.NewRegistry()

	// Report cache is optional
	var cache storage.ReportCache
	if cfg.Redis.Addr != "" {
		redisCache, err := storage.NewRedisReportCache(cfg.Redis)
		if err != nil {
			log.Printf("calculator: warning: report cache disabled: %v", err)
		} else {
			cache = redisCache
			defer redisCache.Close()
			log.Printf("calculator: report cache on redis %s, ttl %v", cfg.Redis.Addr, cfg.Redis.TTL)
		}
	}

	// Line history: PostgreSQL when a DSN is configured, memory otherwise
	var lines storage.LineStore
	if cfg.Postgres.DSN != "" {
		log.Println("calculator: initializing PostgreSQL line store...")
		pgStore, err := storage.NewPostgresLineStore(cfg.Postgres)
		if err != nil {
			log.Fatalf("calculator: failed to initialize PostgreSQL storage: %v", err)
		}
		lines = pgStore
		defer func() {
			if err := pgStore.Close(); err != nil {
				log.Printf("calculator: error closing PostgreSQL storage: %v", err)
			}
		}()
		log.Println("calculator: PostgreSQL line store initialized")
	} else {
		lines = storage.NewMemoryLineStore()
		log.Println("calculator: no postgres DSN, line history kept in memory")
	}

	var notifier calculator.Notifier
	if cfg.Alerts.TelegramBotToken != "" && cfg.Alerts.TelegramChatID != 0 {
		tg, err := calculator.NewTelegramNotifier(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID, reg)
		if err != nil {
			slog.Error("Telegram alerts disabled", "error", err)
		} else {
			notifier = tg
			defer tg.Stop()
		}
	}

	calc := calculator.NewProbabilityCalculator(eng, cache, lines, notifier, reg, calculator.Config{
		Fingerprint:     cfg.Engine.Fingerprint(),
		ThresholdPP:     cfg.Alerts.ThresholdPP,
		CleanupInterval: cfg.Server.CleanupInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, stopping calculator...")
		log.Println("Received shutdown signal, stopping calculator...")
		cancel()
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           calc.Router(cfg.Server),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		log.Printf("calculator: http server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			log.Printf("calculator: http server error: %v", err)
			cancel()
		}
	}()

	if err := calc.Start(ctx); err != nil {
		slog.Error("Calculator failed", "error", err)
		log.Fatalf("Calculator failed: %v", err)
	}

	slog.Info("Line Probability Calculator stopped")
	log.Println("Line Probability Calculator stopped")
}

// applyEnvOverrides lets deployments inject secrets without touching the config file.
func applyEnvOverrides(cfg *config.Config) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Alerts.TelegramBotToken = token
		log.Println("calculator: using Telegram bot token from environment")
	}
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		if chatID, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			cfg.Alerts.TelegramChatID = chatID
			log.Printf("calculator: using Telegram chat ID from environment: %d", chatID)
		}
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
		log.Println("calculator: using PostgreSQL DSN from POSTGRES_DSN environment variable")
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
		log.Printf("calculator: using redis address from environment: %s", redisAddr)
	}
}
