package strategy

import (
	"context"
	"fmt"

	"TradeSentinel/internal/model"
)

// TakeProfitTarget grosses the take-profit level up so that the gain is net
// of the fee paid on both legs.
func TakeProfitTarget(avg, takeProfit, fee float64) float64 {
	return avg * ((1 + fee) * (1 + takeProfit) / (1 - fee))
}

// StopLossLevel is the price at or below which a position is cut.
func StopLossLevel(avg, stopLoss float64) float64 {
	return avg * (1 - stopLoss)
}

func (e *Engine) exits(_ context.Context, sc *Context) Result {
	const name = "exit"
	acct := sc.Account
	if !acct.Holding() || acct.AvgPrice <= 0 {
		return none(name)
	}
	price := sc.Price()

	if stop := StopLossLevel(acct.AvgPrice, e.cfg.StopLoss); price <= stop {
		return signal(name, model.Decision{
			Action: model.ActionSell, Pattern: model.ReasonStopLoss, Reason: model.ReasonStopLoss,
			Detail: fmt.Sprintf("price %.0f <= stop %.0f", price, stop),
		})
	}
	if target := TakeProfitTarget(acct.AvgPrice, e.cfg.TakeProfit, e.cfg.Fee); price >= target {
		return signal(name, model.Decision{
			Action: model.ActionSell, Pattern: model.ReasonTakeProfit, Reason: model.ReasonTakeProfit,
			Detail: fmt.Sprintf("price %.0f >= target %.0f", price, target),
		})
	}
	if macd := sc.Fine.Latest().MACDDiff; sc.Sentiment >= e.cfg.GreedThreshold && macd < 0 {
		return signal(name, model.Decision{
			Action: model.ActionSell, Pattern: model.ReasonTrendSell, Reason: model.ReasonTrendSell,
			Detail: fmt.Sprintf("sentiment %d with macd diff %.1f", sc.Sentiment, macd),
		})
	}
	return none(name)
}
