package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/linecalc/internal/calculator"
)

const (
	defaultCalculatorURL = "http://localhost:8080"
)

type BotConfig struct {
	Token          string
	CalculatorURL  string
	UpdateTimeout  int
	AllowedUserIDs []int64 // Optional: restrict access to specific users
}

func main() {
	var token string
	var calculatorURL string
	var allowedUsers string

	flag.StringVar(&token, "token", "", "Telegram bot token (required, or set TELEGRAM_BOT_TOKEN env var)")
	flag.StringVar(&calculatorURL, "calculator-url", defaultCalculatorURL, "Calculator service URL")
	flag.StringVar(&allowedUsers, "allowed-users", "", "Comma-separated list of allowed user IDs (optional)")
	flag.Parse()

	// Get token from environment if not provided via flag
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		log.Fatal("Telegram bot token is required. Set -token flag or TELEGRAM_BOT_TOKEN env var")
	}

	// Get calculator URL from environment if not provided
	if calculatorURL == defaultCalculatorURL {
		if envURL := os.Getenv("CALCULATOR_URL"); envURL != "" {
			calculatorURL = envURL
		}
	}

	config := BotConfig{
		Token:          token,
		CalculatorURL:  calculatorURL,
		UpdateTimeout:  60,
		AllowedUserIDs: parseUserIDs(allowedUsers),
	}

	log.Printf("Starting Telegram bot...")
	log.Printf("Calculator URL: %s", config.CalculatorURL)

	bot, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	h := &handler{
		bot:     bot,
		client:  calculator.NewClient(config.CalculatorURL),
		allowed: config.AllowedUserIDs,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.UpdateTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping bot...")
		cancel()
	}()

	updates := bot.GetUpdatesChan(u)

	// Start bot handler
	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				h.handleMessage(ctx, update.Message)
			}
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()
	log.Println("Telegram bot stopped")
}

// parseUserIDs reads a comma-separated list, skipping malformed entries.
func parseUserIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, idStr := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
