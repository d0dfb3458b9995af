package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/linecalc/internal/calculator"
	"github.com/Vodeneev/linecalc/internal/engine"
)

type recordingBot struct {
	mu   sync.Mutex
	msgs []tgbotapi.MessageConfig
}

func (r *recordingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		r.msgs = append(r.msgs, m)
	}
	return tgbotapi.Message{}, nil
}

func (r *recordingBot) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1].Text
}

func newCalculatorStub(t *testing.T) *httptest.Server {
	t.Helper()
	e, err := engine.New(engine.DefaultOptions())
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/probabilities", func(w http.ResponseWriter, r *http.Request) {
		var req calculator.ProbabilitiesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rep := e.Compute(engine.Request{Opening: *req.Opening, Current: *req.Current})
		_ = json.NewEncoder(w).Encode(calculator.ProbabilitiesResponse{Report: rep})
	})
	mux.HandleFunc("/api/v1/corrections", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(calculator.CorrectionsResponse{Enabled: []string{}, Available: engine.AvailableCorrections()})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func message(text string, userID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 7},
		From: &tgbotapi.User{ID: userID},
	}
}

func TestHandleMessage_Probs(t *testing.T) {
	srv := newCalculatorStub(t)
	bot := &recordingBot{}
	h := &handler{bot: bot, client: calculator.NewClient(srv.URL)}

	h.handleMessage(context.Background(), message("/probs -0.5 2.5 -0.75 2.75", 1))
	text := bot.last()
	assert.Contains(t, text, "Spread -0.75, total 2.75")
	assert.Contains(t, text, "*1X2:*")
	assert.Contains(t, text, "*Total 2.5:*")
	assert.Contains(t, text, "Movement:* spread -0.25, total +0.25")

	h.handleMessage(context.Background(), message("probs -0,5 2,5", 1))
	text = bot.last()
	assert.Contains(t, text, "Spread -0.5, total 2.5")
	assert.NotContains(t, text, "Movement")
}

func TestHandleMessage_Commands(t *testing.T) {
	srv := newCalculatorStub(t)
	bot := &recordingBot{}
	h := &handler{bot: bot, client: calculator.NewClient(srv.URL)}
	ctx := context.Background()

	h.handleMessage(ctx, message("/help", 1))
	assert.Contains(t, bot.last(), "/probs")

	h.handleMessage(ctx, message("/corrections@linecalc_bot", 1))
	assert.Contains(t, bot.last(), "Enabled corrections: none")

	h.handleMessage(ctx, message("/probs abc 2.5", 1))
	assert.Contains(t, bot.last(), "invalid number")

	h.handleMessage(ctx, message("/whatever", 1))
	assert.Contains(t, bot.last(), "Unknown command")
}

func TestHandleMessage_AllowedUsers(t *testing.T) {
	bot := &recordingBot{}
	h := &handler{bot: bot, allowed: []int64{42}}

	h.handleMessage(context.Background(), message("/help", 1))
	assert.True(t, strings.HasPrefix(bot.last(), "Access denied"))

	h.handleMessage(context.Background(), message("/help", 42))
	assert.Contains(t, bot.last(), "Line Probability Bot")
}

func TestParseProbsArgs(t *testing.T) {
	req, err := parseProbsArgs([]string{"-0.5", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, *req.Opening, *req.Current)

	req, err = parseProbsArgs([]string{"0", "2.25", "-0.25", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, engine.MatchLine{Spread: -0.25, Total: 2.5}, *req.Current)

	for _, args := range [][]string{nil, {"1"}, {"1", "2", "3"}, {"NaN", "2.5"}, {"0", "Inf"}} {
		_, err := parseProbsArgs(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestParseUserIDs(t *testing.T) {
	assert.Nil(t, parseUserIDs(""))
	assert.Equal(t, []int64{1, 42}, parseUserIDs("1, x, 42"))
}
