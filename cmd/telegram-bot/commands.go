package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/linecalc/internal/calculator"
	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/line"
)

const helpText = `🤖 *Line Probability Bot*

*Available Commands:*

/probs <spread> <total> - Probabilities for one line
  Example: /probs -0.5 2.5

/probs <spread> <total> <spread> <total> - Opening and current line, with movement
  Example: /probs -0.5 2.5 -0.75 2.75

/corrections - Show grid corrections of the service

/help - Show this help message

*Note:* Spread is from the home side, negative means the home team is favoured.`

const maxExactScores = 5

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type handler struct {
	bot     sender
	client  *calculator.Client
	allowed []int64
}

func (h *handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Check if user is allowed (if restrictions are set)
	if !h.isAllowed(message.From) {
		h.reply(message.Chat.ID, "Access denied. You are not authorized to use this bot.", false)
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	// Plain "probs -0.5 2.5" works like the command
	command = "/" + strings.TrimPrefix(command, "/")
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start", "/help":
		h.reply(message.Chat.ID, helpText, true)
	case "/probs":
		h.sendProbabilities(ctx, message.Chat.ID, parts[1:])
	case "/corrections":
		h.sendCorrections(ctx, message.Chat.ID)
	default:
		h.reply(message.Chat.ID, "Unknown command. Use /help to see available commands.", false)
	}
}

func (h *handler) isAllowed(from *tgbotapi.User) bool {
	if len(h.allowed) == 0 {
		return true
	}
	if from == nil {
		return false
	}
	for _, id := range h.allowed {
		if from.ID == id {
			return true
		}
	}
	return false
}

func (h *handler) sendProbabilities(ctx context.Context, chatID int64, args []string) {
	req, err := parseProbsArgs(args)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ %v\nExample: /probs -0.5 2.5", err), false)
		return
	}

	// Show "typing..." indicator
	_, _ = h.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := h.client.Probabilities(reqCtx, req)
	if err != nil {
		log.Printf("telegram-bot: probabilities request failed: %v", err)
		h.reply(chatID, fmt.Sprintf("❌ Error: %v", err), false)
		return
	}
	h.reply(chatID, formatReport(resp.Report), true)
}

func (h *handler) sendCorrections(ctx context.Context, chatID int64) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := h.client.Corrections(reqCtx)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Error: %v", err), false)
		return
	}

	enabled := "none"
	if len(resp.Enabled) > 0 {
		enabled = strings.Join(resp.Enabled, ", ")
	}
	text := fmt.Sprintf("🧮 Enabled corrections: %s\nAvailable: %s", enabled, strings.Join(resp.Available, ", "))
	h.reply(chatID, text, false)
}

func (h *handler) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := h.bot.Send(msg); err != nil {
		log.Printf("telegram-bot: failed to send message: %v", err)
	}
}

// parseProbsArgs reads "spread total" or "spread total spread total".
// A single line is used as both opening and current line.
func parseProbsArgs(args []string) (calculator.ProbabilitiesRequest, error) {
	if len(args) != 2 && len(args) != 4 {
		return calculator.ProbabilitiesRequest{}, errors.New("expected <spread> <total> or two such pairs")
	}
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(strings.ReplaceAll(a, ",", "."), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return calculator.ProbabilitiesRequest{}, fmt.Errorf("invalid number %q", a)
		}
		values[i] = v
	}

	opening := &engine.MatchLine{Spread: values[0], Total: values[1]}
	current := opening
	if len(values) == 4 {
		current = &engine.MatchLine{Spread: values[2], Total: values[3]}
	}
	return calculator.ProbabilitiesRequest{Opening: opening, Current: current}, nil
}

func formatReport(rep engine.Report) string {
	cur := rep.Current
	m := cur.Markets

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *Spread %s, total %s*\n", line.FormatParameter(cur.Line.Spread), line.FormatParameter(cur.Line.Total)))
	b.WriteString(fmt.Sprintf("⚽ Expected goals: %.2f - %.2f\n\n", cur.Rates.Home, cur.Rates.Away))

	b.WriteString(fmt.Sprintf("*1X2:* %s / %s / %s\n", pct(m.MatchResult.Home), pct(m.MatchResult.Draw), pct(m.MatchResult.Away)))
	b.WriteString(fmt.Sprintf("*Double chance:* 1X %s, 12 %s, X2 %s\n", pct(m.DoubleChance.HomeOrDraw), pct(m.DoubleChance.HomeOrAway), pct(m.DoubleChance.DrawOrAway)))
	b.WriteString(fmt.Sprintf("*Both score:* yes %s, no %s\n", pct(m.BothTeamsToScore.Yes), pct(m.BothTeamsToScore.No)))
	for _, l := range m.OverUnder {
		b.WriteString(fmt.Sprintf("*Total %s:* over %s, under %s\n", line.FormatParameter(l.Line), pct(l.Over), pct(l.Under)))
	}
	b.WriteString(fmt.Sprintf("*Half time 1X2:* %s / %s / %s\n", pct(m.HalfTime.MatchResult.Home), pct(m.HalfTime.MatchResult.Draw), pct(m.HalfTime.MatchResult.Away)))

	if len(m.ExactScores) > 0 {
		b.WriteString("\n*Likely scores:* ")
		for i, s := range m.ExactScores {
			if i == maxExactScores {
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%d-%d %s", s.Home, s.Away, pct(s.Probability)))
		}
		b.WriteString("\n")
	}

	if rep.Movement.SpreadChange != 0 || rep.Movement.TotalChange != 0 {
		o := rep.Opening.Markets.MatchResult
		b.WriteString(fmt.Sprintf("\n📈 *Movement:* spread %+.2f, total %+.2f\n", rep.Movement.SpreadChange, rep.Movement.TotalChange))
		b.WriteString(fmt.Sprintf("1X2 from %s / %s / %s\n", pct(o.Home), pct(o.Draw), pct(o.Away)))
	}
	if cur.Degenerate {
		b.WriteString("\n⚠️ Some markets fell back to neutral values\n")
	}
	return b.String()
}

func pct(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

