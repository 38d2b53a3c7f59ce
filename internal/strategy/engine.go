// Package strategy turns a Context into a single buy, sell or hold decision.
package strategy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Config holds the cascade thresholds.
type Config struct {
	Lookback       int     `yaml:"lookback"`
	ReboundPct     float64 `yaml:"rebound_pct"`
	DropPct        float64 `yaml:"drop_pct"`
	DojiTolerance  float64 `yaml:"doji_tolerance"`
	VolumeSpike    float64 `yaml:"volume_spike"`
	StopLoss       float64 `yaml:"stop_loss"`
	TakeProfit     float64 `yaml:"take_profit"`
	Fee            float64 `yaml:"fee"`
	GreedThreshold int     `yaml:"greed_threshold"`
	EMACrossBand   float64 `yaml:"ema_cross_band"`
	AIMinCandles   int     `yaml:"ai_min_candles"`
}

// PatternAI detects composite patterns and advises on them.
type PatternAI interface {
	DetectPatterns(ctx context.Context, candles []model.Candle) ([]model.PatternInterval, error)
	DecidePatternAction(ctx context.Context, label string, recent []model.Candle, stats model.PatternStats) (model.Action, error)
}

// PatternHistory is the append-only record of AI-consulted decisions.
type PatternHistory interface {
	LoadPatternHistory(ctx context.Context) ([]model.PatternHistoryEntry, error)
	// AppendPatternHistory stores e and returns its id.
	AppendPatternHistory(ctx context.Context, e model.PatternHistoryEntry) (int64, error)
}

// Engine runs the higher-timeframe gate and the signal cascade.
type Engine struct {
	cfg     Config
	gate    *Gate
	ai      PatternAI
	history PatternHistory
}

// NewEngine creates an Engine. ai and history may be nil to disable the AI stage.
func NewEngine(cfg Config, gate *Gate, ai PatternAI, history PatternHistory) *Engine {
	return &Engine{cfg: cfg, gate: gate, ai: ai, history: history}
}

// Verdict is the engine's answer for one run.
type Verdict struct {
	Decision model.Decision
	Gate     GateResult
	Vetoed   bool
	Stages   []Result
}

type stage struct {
	name string
	run  func(context.Context, *Context) Result
}

// Decide runs the cascade and applies the gate to its answer. The account is
// long-only, so every sell is an exit and passes; a buy under a failing gate
// becomes a trend_filter_veto hold.
func (e *Engine) Decide(ctx context.Context, sc *Context) Verdict {
	var coarse *model.IndicatorSet
	if sc.Coarse != nil {
		latest := sc.Coarse.Latest()
		coarse = &latest
	}
	v := Verdict{Gate: e.gate.Check(sc.Price(), coarse, sc.Sentiment)}
	v.Decision, v.Stages = e.cascade(ctx, sc, e.stages())

	if !v.Gate.Pass && v.Decision.Action == model.ActionBuy {
		v.Vetoed = true
		v.Decision = model.Decision{
			Action:  model.ActionHold,
			Pattern: v.Decision.Pattern,
			Reason:  model.ReasonTrendVeto,
			Detail:  fmt.Sprintf("%s buy blocked: price %.0f below coarse SMA %.0f, no override", v.Decision.Reason, sc.Price(), coarse.SMA),
		}
	}
	return v
}

// Evaluate runs the cascade without the gate.
func (e *Engine) Evaluate(ctx context.Context, sc *Context) (model.Decision, []Result) {
	return e.cascade(ctx, sc, e.stages())
}

// stages lists the cascade in priority order. Exits come first so that a
// held position is closed before any new entry is considered.
func (e *Engine) stages() []stage {
	return []stage{
		{"exit", e.exits},
		{"geometric", e.geometric},
		{"single_candle", e.singleCandle},
		{"ai_pattern", e.aiPattern},
		{"volume_sma", e.volumeSMA},
		{"ema_cross", e.emaCross},
	}
}

func (e *Engine) cascade(ctx context.Context, sc *Context, stages []stage) (model.Decision, []Result) {
	results := make([]Result, 0, len(stages))
	for _, st := range stages {
		r := runStage(ctx, sc, st)
		results = append(results, r)
		switch r.Status {
		case Signal:
			if r.Decision.Action != model.ActionHold {
				return r.Decision, results
			}
		case Insufficient, Unavailable:
			log.Debug().Str("stage", r.Stage).Stringer("status", r.Status).Err(r.Err).Msg("stage skipped")
		}
	}
	return model.Decision{Action: model.ActionHold, Reason: model.ReasonNoSignal}, results
}

func runStage(ctx context.Context, sc *Context, st stage) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("stage", st.name).Interface("panic", p).Msg("stage panicked")
			r = Result{Stage: st.name, Status: Unavailable, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return st.run(ctx, sc)
}
