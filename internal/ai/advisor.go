package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

const (
	noiseSystem = "You are a crypto market microstructure analyst. " +
		"Answer strictly with yes or no."
	patternSystem = "You are a technical analyst for BTC/KRW 15-minute candles. " +
		"Reply with a JSON array only, no prose."
	actionSystem = "You are a disciplined intraday BTC trader. " +
		"Reply with exactly one word: buy, sell or hold."
	reflectSystem = "You review an automated BTC trading bot. " +
		"Be concise and concrete, at most 8 short bullet points."

	recentCandles = 10
)

// Advisor answers the trader's questions with one model call each. Answers
// are cached by prompt when a store is supplied.
type Advisor struct {
	llm   Completer
	cache cache.Store
	ttl   time.Duration
}

// NewAdvisor creates an advisor. store may be nil.
func NewAdvisor(llm Completer, store cache.Store, ttl time.Duration) *Advisor {
	return &Advisor{llm: llm, cache: store, ttl: ttl}
}

// IsNoise asks whether the last candle of the window is noise.
func (a *Advisor) IsNoise(ctx context.Context, candles []model.Candle) (bool, error) {
	prompt := "Recent BTC/KRW 15-minute candles, oldest first:\n" + formatCandles(candles) +
		"\nIs the last candle market noise that should not drive a trade? Answer yes or no."
	answer, err := a.ask(ctx, "noise", noiseSystem, prompt)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(normalize(answer), "yes"), nil
}

type patternReply struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// DetectPatterns asks for named chart patterns with the interval each spans.
func (a *Advisor) DetectPatterns(ctx context.Context, candles []model.Candle) ([]model.PatternInterval, error) {
	prompt := "BTC/KRW 15-minute candles, oldest first, times in UTC:\n" + formatCandles(candles) +
		"\nList the chart patterns you can identify. Respond as " +
		`[{"label":"<pattern name>","start":"<RFC3339>","end":"<RFC3339>"}]` +
		". Return [] if there are none."
	answer, err := a.ask(ctx, "patterns", patternSystem, prompt)
	if err != nil {
		return nil, err
	}
	return parsePatterns(answer)
}

// DecidePatternAction asks what to do about a pattern given its track record.
func (a *Advisor) DecidePatternAction(ctx context.Context, label string, recent []model.Candle, stats model.PatternStats) (model.Action, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pattern %q is forming on BTC/KRW.\n", label)
	if stats.Settled > 0 {
		fmt.Fprintf(&sb, "Past occurrences: %d, settled %d, win rate %.1f%%, average return %.2f%%.\n",
			stats.Count, stats.Settled, stats.WinRate*100, stats.AvgReturn*100)
	} else {
		fmt.Fprintf(&sb, "No settled history for this pattern (%d prior sightings).\n", stats.Count)
	}
	sb.WriteString("Latest candles, oldest first:\n")
	sb.WriteString(formatCandles(recent))
	sb.WriteString("\nShould the bot buy, sell or hold?")

	answer, err := a.ask(ctx, "action", actionSystem, sb.String())
	if err != nil {
		return model.ActionHold, err
	}
	return parseAction(answer), nil
}

// Reflect summarizes what went right and wrong across recent trades.
func (a *Advisor) Reflect(ctx context.Context, trades []recorder.TradeRecord) (string, error) {
	if len(trades) == 0 {
		return "", fmt.Errorf("reflect: no trades")
	}
	var sb strings.Builder
	sb.WriteString("Recent decisions, newest first:\n")
	for _, t := range trades {
		fmt.Fprintf(&sb, "%s %s %s reason=%s price=%.0f cash=%.0f btc=%.8f\n",
			t.CandleTS.UTC().Format(time.RFC3339), t.Outcome, t.Decision.Action,
			t.Decision.Reason, t.Price, t.Account.Cash, t.Account.Quantity)
	}
	sb.WriteString("\nWhat worked, what did not, and which thresholds would you adjust?")

	// reflections are never cached
	text, err := a.llm.Complete(ctx, reflectSystem, sb.String())
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}

func (a *Advisor) ask(ctx context.Context, kind, system, prompt string) (string, error) {
	var key string
	if a.cache != nil {
		sum := sha256.Sum256([]byte(system + "\x00" + prompt))
		key = "ai:" + kind + ":" + hex.EncodeToString(sum[:12])
		if data, ok, err := a.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		} else if err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("ai cache read failed")
		}
	}

	answer, err := a.llm.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, key, []byte(answer), a.ttl); err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("ai cache write failed")
		}
	}
	return answer, nil
}

func formatCandles(candles []model.Candle) string {
	var sb strings.Builder
	for _, c := range candles {
		fmt.Fprintf(&sb, "%s O=%.0f H=%.0f L=%.0f C=%.0f V=%.4f\n",
			c.Time.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return sb.String()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(stripFences(s), "\"'`.")))
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// parseAction reads a one-word reply. Only the first word counts, so a
// reply like "not buy" or "avoid selling" is hold.
func parseAction(answer string) model.Action {
	f := strings.Fields(normalize(answer))
	if len(f) == 0 {
		return model.ActionHold
	}
	switch act := model.Action(strings.Trim(f[0], ".,!:;*\"'")); act {
	case model.ActionBuy, model.ActionSell:
		return act
	}
	return model.ActionHold
}

func parsePatterns(answer string) ([]model.PatternInterval, error) {
	s := stripFences(answer)
	if i := strings.IndexByte(s, '['); i > 0 {
		s = s[i:]
	}
	if j := strings.LastIndexByte(s, ']'); j >= 0 && j < len(s)-1 {
		s = s[:j+1]
	}
	var replies []patternReply
	if err := json.Unmarshal([]byte(s), &replies); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}

	out := make([]model.PatternInterval, 0, len(replies))
	for _, r := range replies {
		start, err1 := time.Parse(time.RFC3339, strings.TrimSpace(r.Start))
		end, err2 := time.Parse(time.RFC3339, strings.TrimSpace(r.End))
		if r.Label == "" || err1 != nil || err2 != nil {
			log.Debug().Str("label", r.Label).Msg("dropping malformed pattern interval")
			continue
		}
		if end.Before(start) {
			start, end = end, start
		}
		out = append(out, model.PatternInterval{Label: r.Label, Start: start.UTC(), End: end.UTC()})
	}
	return out, nil
}
