package calculator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/linecalc/internal/pkg/line"
	"github.com/Vodeneev/linecalc/internal/pkg/metrics"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// maxMovementsPerAlert limits the outcomes listed in one message.
const maxMovementsPerAlert = 8

// Notifier delivers probability movement alerts.
type Notifier interface {
	// NotifyMovements queues an alert for a line update (non-blocking)
	NotifyMovements(ctx context.Context, report *LineReport, thresholdPP float64) error
}

// botSender is the part of tgbotapi.BotAPI the notifier uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// queuedMessage represents a message queued for sending
type queuedMessage struct {
	text       string
	matchName  string
	detectedAt time.Time
}

// TelegramNotifier sends Telegram notifications for probability movements
type TelegramNotifier struct {
	bot      botSender
	chatID   int64
	interval time.Duration
	metrics  *metrics.Registry

	mu       sync.Mutex
	lastSend time.Time

	// Async queue for sending messages
	queue     chan queuedMessage
	queueDone chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTelegramNotifier connects to the bot API and starts the sender.
func NewTelegramNotifier(token string, chatID int64, m *metrics.Registry) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	// Test bot connection
	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}

	n := newTelegramNotifier(bot, chatID, telegramSendInterval, m)
	slog.Info("Telegram notifier initialized", "chat_id", chatID)
	return n, nil
}

func newTelegramNotifier(bot botSender, chatID int64, interval time.Duration, m *metrics.Registry) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		interval:  interval,
		metrics:   m,
		queue:     make(chan queuedMessage, 100), // Buffer up to 100 messages
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	// Start background worker for sending messages
	n.wg.Add(1)
	go n.messageSender()
	return n
}

// QueueLen returns current number of messages in the send queue.
func (n *TelegramNotifier) QueueLen() int {
	if n == nil || n.queue == nil {
		return 0
	}
	return len(n.queue)
}

// messageSender runs in background and sends queued messages with proper intervals
func (n *TelegramNotifier) messageSender() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case msg := <-n.queue:
					n.send(msg, false)
				default:
					close(n.queueDone)
					return
				}
			}
		case msg := <-n.queue:
			n.send(msg, true)
		}
	}
}

// send delivers one message, waiting out the interval since the previous one.
// While draining on Stop the wait is skipped.
func (n *TelegramNotifier) send(msg queuedMessage, wait bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if elapsed := time.Since(n.lastSend); wait && elapsed < n.interval {
		waitTime := n.interval - elapsed
		slog.Debug("Telegram send: waiting for rate limit", "wait_time", waitTime, "match", msg.matchName)
		select {
		case <-n.ctx.Done():
		case <-time.After(waitTime):
		}
	}

	tgMsg := tgbotapi.NewMessage(n.chatID, msg.text)
	tgMsg.ParseMode = tgbotapi.ModeMarkdown

	n.lastSend = time.Now()
	if _, err := n.bot.Send(tgMsg); err != nil {
		n.metrics.ObserveAlert(metrics.AlertFailed)
		slog.Error("Telegram send: failed", "error", err, "match", msg.matchName,
			"message_preview", truncateString(msg.text, 50))
		return
	}
	n.metrics.ObserveAlert(metrics.AlertSent)
	slog.Info("Telegram send: success",
		"match", msg.matchName,
		"delay_since_detection_sec", time.Since(msg.detectedAt).Seconds(),
		"queue_length", len(n.queue))
}

// NotifyMovements queues an alert for the movements of a line update (non-blocking).
func (n *TelegramNotifier) NotifyMovements(ctx context.Context, report *LineReport, thresholdPP float64) error {
	if n == nil || n.bot == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}
	if report == nil || len(report.Movements) == 0 {
		return nil
	}

	msg := queuedMessage{
		text:       formatMovementAlert(report, thresholdPP),
		matchName:  report.Match.Name(),
		detectedAt: report.Movements[0].DetectedAt,
	}
	select {
	case <-n.ctx.Done():
		return fmt.Errorf("notifier stopped")
	default:
	}
	select {
	case <-n.ctx.Done():
		return fmt.Errorf("notifier stopped")
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- msg:
		return nil
	default:
		// Queue is full, log warning but don't block
		n.metrics.ObserveAlert(metrics.AlertDropped)
		slog.Warn("Telegram message queue is full, dropping message", "match", msg.matchName)
		return fmt.Errorf("message queue is full")
	}
}

// Stop stops the notifier and waits for all queued messages to be sent
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.cancel()
	<-n.queueDone
	n.wg.Wait()
}

func formatMovementAlert(report *LineReport, thresholdPP float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *Probability movement (≥%.1f pp)*\n\n", thresholdPP))
	b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(report.Match.Name())))
	if !report.Match.StartTime.IsZero() {
		b.WriteString(fmt.Sprintf("🕐 %s\n", formatTime(report.Match.StartTime)))
	}
	b.WriteString(fmt.Sprintf("📈 Spread %s → %s, total %s → %s\n\n",
		line.FormatParameter(report.Opening.Spread), line.FormatParameter(report.Current.Spread),
		line.FormatParameter(report.Opening.Total), line.FormatParameter(report.Current.Total)))

	for i, m := range report.Movements {
		if i == maxMovementsPerAlert {
			b.WriteString(fmt.Sprintf("_…and %d more_\n", len(report.Movements)-maxMovementsPerAlert))
			break
		}
		arrow := "🔺"
		if m.ChangePP < 0 {
			arrow = "🔻"
		}
		b.WriteString(fmt.Sprintf("%s %s: %.1f%% → %.1f%% (%+.1f pp)\n",
			arrow, escapeMarkdown(m.Outcome), m.OpeningProbability*100, m.CurrentProbability*100, m.ChangePP))
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02.01 15:04 UTC")
}


// escapeMarkdown escapes special characters for Telegram Markdown
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
