package strategy

import (
	"context"

	"TradeSentinel/internal/model"
)

func (e *Engine) geometric(_ context.Context, sc *Context) Result {
	const name = "geometric"
	n := e.cfg.Lookback
	if n < 3 {
		n = 3
	}
	if sc.Fine.Len() < n {
		return insufficient(name)
	}
	w := sc.Fine.Tail(n)
	switch {
	case IsDoubleBottom(w, e.cfg.ReboundPct):
		return signal(name, model.Decision{Action: model.ActionBuy, Pattern: model.PatternDoubleBottom, Reason: model.PatternDoubleBottom})
	case IsDoubleTop(w, e.cfg.DropPct):
		return signal(name, model.Decision{Action: model.ActionSell, Pattern: model.PatternDoubleTop, Reason: model.PatternDoubleTop})
	}
	return none(name)
}

func (e *Engine) singleCandle(_ context.Context, sc *Context) Result {
	const name = "single_candle"
	if sc.Fine.Len() < 1 {
		return insufficient(name)
	}
	last := sc.Fine.Last()
	if !IsVolumeSpike(last.Volume, sc.Fine.Latest().VolumeMA, e.cfg.VolumeSpike) {
		return none(name)
	}
	var label string
	switch {
	case IsDoji(last, e.cfg.DojiTolerance):
		label = model.PatternDoji
	case IsHammer(last):
		label = model.PatternHammer
	case IsInvertedHammer(last):
		label = model.PatternInvertedHammer
	default:
		return none(name)
	}
	return signal(name, model.Decision{Action: model.ActionBuy, Pattern: label, Reason: label, Detail: "volume spike + " + label})
}
