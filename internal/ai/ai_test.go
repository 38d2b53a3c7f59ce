package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

type stubLLM struct {
	answer string
	err    error
	calls  int
	last   string
}

func (s *stubLLM) Complete(_ context.Context, _, user string) (string, error) {
	s.calls++
	s.last = user
	return s.answer, s.err
}

func candles(n int) []model.Candle {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}
	return out
}

func TestClientOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" yes "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt", BaseURL: srv.URL})
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestClientClaude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hold"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: ProviderClaude, APIKey: "k", BaseURL: srv.URL})
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hold", out)
}

func TestClientServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransient)
}

func TestClientUnconfigured(t *testing.T) {
	_, err := NewClient(Config{}).Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestIsNoise(t *testing.T) {
	llm := &stubLLM{answer: "Yes."}
	noise, err := NewAdvisor(llm, nil, 0).IsNoise(context.Background(), candles(5))
	require.NoError(t, err)
	assert.True(t, noise)

	llm.answer = "no, this is a real move"
	noise, err = NewAdvisor(llm, nil, 0).IsNoise(context.Background(), candles(5))
	require.NoError(t, err)
	assert.False(t, noise)
}

func TestDetectPatterns(t *testing.T) {
	llm := &stubLLM{answer: "```json\n" +
		`[{"label":"Cup and Handle","start":"2024-06-01T00:00:00Z","end":"2024-06-01T02:00:00Z"},` +
		`{"label":"broken","start":"yesterday","end":"now"}]` + "\n```"}
	got, err := NewAdvisor(llm, nil, 0).DetectPatterns(context.Background(), candles(10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cup and Handle", got[0].Label)
	assert.True(t, got[0].Covers(time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)))
}

func TestDetectPatternsGarbage(t *testing.T) {
	_, err := NewAdvisor(&stubLLM{answer: "I see nothing"}, nil, 0).DetectPatterns(context.Background(), candles(3))
	assert.Error(t, err)
}

func TestDecidePatternAction(t *testing.T) {
	cases := map[string]model.Action{
		"buy":                     model.ActionBuy,
		"SELL.":                   model.ActionSell,
		"**Buy** on the rebound":  model.ActionBuy,
		"hold":                    model.ActionHold,
		"no idea":                 model.ActionHold,
		"better to hold, not buy": model.ActionHold,
		"I would not buy here":    model.ActionHold,
		"Avoid buying; wait":      model.ActionHold,
		"Don't sell into this":    model.ActionHold,
	}
	for answer, want := range cases {
		llm := &stubLLM{answer: answer}
		got, err := NewAdvisor(llm, nil, 0).DecidePatternAction(context.Background(), "flag", candles(10),
			model.PatternStats{Label: "flag", Count: 3, Settled: 2, WinRate: 0.5, AvgReturn: 0.01})
		require.NoError(t, err)
		assert.Equal(t, want, got, answer)
	}
}

func TestDecidePatternActionError(t *testing.T) {
	got, err := NewAdvisor(&stubLLM{err: errors.New("down")}, nil, 0).
		DecidePatternAction(context.Background(), "flag", candles(3), model.PatternStats{})
	assert.Error(t, err)
	assert.Equal(t, model.ActionHold, got)
}

func TestAdvisorCachesAnswers(t *testing.T) {
	llm := &stubLLM{answer: "no"}
	adv := NewAdvisor(llm, cache.NewMemory(), time.Hour)
	for i := 0; i < 3; i++ {
		_, err := adv.IsNoise(context.Background(), candles(5))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, llm.calls)
}

func TestReflect(t *testing.T) {
	llm := &stubLLM{answer: "- tighten stop loss"}
	trades := []recorder.TradeRecord{{
		CandleTS: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Outcome:  model.OutcomeExecuted,
		Decision: model.Decision{Action: model.ActionBuy, Reason: model.ReasonVolumeSMA},
		Price:    90000000,
	}}
	text, err := NewAdvisor(llm, nil, 0).Reflect(context.Background(), trades)
	require.NoError(t, err)
	assert.Equal(t, "- tighten stop loss", text)
	assert.Contains(t, llm.last, "volume+SMA")

	_, err = NewAdvisor(llm, nil, 0).Reflect(context.Background(), nil)
	assert.Error(t, err)
}
