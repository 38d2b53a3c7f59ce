package strategy

import (
	"context"
	"fmt"
	"math"

	"TradeSentinel/internal/model"
)

// volumeSMA is volume-confirmed trend following on the fine SMA.
func (e *Engine) volumeSMA(_ context.Context, sc *Context) Result {
	const name = "volume_sma"
	if sc.Fine.Len() < 1 {
		return insufficient(name)
	}
	last := sc.Fine.Last()
	ind := sc.Fine.Latest()
	switch {
	case IsVolumeSpike(last.Volume, ind.VolumeMA, e.cfg.VolumeSpike) && last.Close > ind.SMA:
		return signal(name, model.Decision{
			Action: model.ActionBuy, Pattern: model.ReasonVolumeSMA, Reason: model.ReasonVolumeSMA,
			Detail: fmt.Sprintf("volume spike above SMA %.0f", ind.SMA),
		})
	case sc.Account.Holding() && last.Close < ind.SMA:
		return signal(name, model.Decision{
			Action: model.ActionSell, Pattern: model.ReasonPriceBelowSMA, Reason: model.ReasonPriceBelowSMA,
			Detail: fmt.Sprintf("price %.0f under SMA %.0f", last.Close, ind.SMA),
		})
	}
	return none(name)
}

// emaCross trades fast/slow EMA crossings between the previous and latest candle.
func (e *Engine) emaCross(_ context.Context, sc *Context) Result {
	const name = "ema_cross"
	n := sc.Fine.Len()
	if n < 2 {
		return insufficient(name)
	}
	prev := sc.Fine.EMAFast[n-2] - sc.Fine.EMASlow[n-2]
	curr := sc.Fine.EMAFast[n-1] - sc.Fine.EMASlow[n-1]
	if math.Abs(curr) <= e.cfg.EMACrossBand {
		return none(name)
	}
	switch {
	case prev <= 0 && curr > 0:
		return signal(name, model.Decision{
			Action: model.ActionBuy, Pattern: model.ReasonGoldenCross, Reason: model.ReasonGoldenCross,
			Detail: fmt.Sprintf("fast-slow %.1f -> %.1f", prev, curr),
		})
	case prev >= 0 && curr < 0:
		return signal(name, model.Decision{
			Action: model.ActionSell, Pattern: model.ReasonDeadCross, Reason: model.ReasonDeadCross,
			Detail: fmt.Sprintf("fast-slow %.1f -> %.1f", prev, curr),
		})
	}
	return none(name)
}
