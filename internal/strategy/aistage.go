package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// recentForAdvice is how many candles accompany a pattern decision request.
const recentForAdvice = 10

func (e *Engine) aiPattern(ctx context.Context, sc *Context) Result {
	const name = "ai_pattern"
	if e.ai == nil {
		return none(name)
	}
	if sc.Fine.Len() < e.cfg.AIMinCandles {
		return insufficient(name)
	}

	intervals, err := e.ai.DetectPatterns(ctx, sc.Fine.Candles)
	if err != nil {
		return Result{Stage: name, Status: Unavailable, Err: err}
	}
	now := sc.Fine.Last().Time
	for _, iv := range intervals {
		label := strings.ToLower(strings.TrimSpace(iv.Label))
		if label == "" || !iv.Covers(now) {
			continue
		}
		if model.KnownPatterns[label] {
			log.Debug().Str("label", label).Msg("ai pattern left to rule detection")
			continue
		}
		return e.consult(ctx, sc, label)
	}
	return none(name)
}

// consult asks the advisor about label and appends the outcome to history.
func (e *Engine) consult(ctx context.Context, sc *Context, label string) Result {
	const name = "ai_pattern"
	var history []model.PatternHistoryEntry
	if e.history != nil {
		h, err := e.history.LoadPatternHistory(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("pattern history unavailable")
		}
		history = h
	}
	stats := model.SummarizePatterns(label, history)

	action, err := e.ai.DecidePatternAction(ctx, label, sc.Fine.Tail(recentForAdvice), stats)
	if err != nil {
		log.Warn().Err(err).Str("label", label).Msg("pattern advice unavailable, holding")
		action = model.ActionHold
	}

	var entryID int64
	if e.history != nil {
		entry := model.PatternHistoryEntry{Time: time.Now().UTC(), Label: label, Decision: action}
		id, err := e.history.AppendPatternHistory(ctx, entry)
		if err != nil {
			log.Warn().Err(err).Str("label", label).Msg("append pattern history")
		}
		entryID = id
	}

	if action == model.ActionHold {
		return none(name)
	}
	return signal(name, model.Decision{
		Action:       action,
		Pattern:      label,
		Reason:       model.ReasonAIPatternPrefix + label,
		Detail:       "ai pattern decision",
		PatternEntry: entryID,
	})
}
