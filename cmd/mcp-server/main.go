package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Vodeneev/linecalc/internal/calculator"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
	"github.com/Vodeneev/linecalc/internal/pkg/logging"
)

func main() {
	var configPath string
	var authHeader string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/production.yaml"
	}
	flag.StringVar(&configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.StringVar(&authHeader, "auth-header", "X-API-Key", "HTTP header to read API key from")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("CALCULATOR_URL"); url != "" {
		cfg.MCP.CalculatorURL = url
	}

	_, logCloser, err := logging.SetupLogger(cfg.Logging, "mcp-server")
	if err != nil {
		log.Printf("Warning: failed to setup logging: %v, continuing with default logger", err)
	} else {
		defer logCloser.Close()
	}

	client := calculator.NewClient(cfg.MCP.CalculatorURL)
	if client == nil {
		log.Fatal("mcp.calculator_url is required")
	}

	registry := make([]toolInfo, 0, 4)
	server := newServer(client, &registry)

	apiKey := strings.TrimSpace(os.Getenv("LINECALC_MCP_API_KEY"))
	if apiKey == "" {
		log.Println("mcp-server: LINECALC_MCP_API_KEY not set, running without authentication")
	}

	srv := &http.Server{
		Addr:              cfg.MCP.Addr,
		Handler:           newMux(server, registry, cfg.MCP.Path, apiKey, authHeader),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("MCP HTTP server listening", "addr", cfg.MCP.Addr, "path", cfg.MCP.Path, "calculator", cfg.MCP.CalculatorURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("mcp-server stopped")
}

func newMux(server *mcp.Server, registry []toolInfo, path, apiKey, authHeader string) http.Handler {
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	withAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(authHeader))
			if key == "" {
				if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					key = strings.TrimSpace(authz[7:])
				}
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/tools", withAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		b, _ := json.MarshalIndent(map[string]any{"tools": registry}, "", "  ")
		_, _ = w.Write(b)
	}))
	mux.HandleFunc(path, withAuth(handler.ServeHTTP))
	return mux
}
