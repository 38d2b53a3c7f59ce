// Package fund sizes orders and applies them to the account.
package fund

import (
	"github.com/shopspring/decimal"

	"TradeSentinel/internal/model"
)

// Config holds sizing and fee parameters.
type Config struct {
	MinOrder         float64 `yaml:"min_order"`          // KRW
	RiskFraction     float64 `yaml:"risk_fraction"`      // share of equity risked per trade
	MaxTradeFraction float64 `yaml:"max_trade_fraction"` // cap on one order as share of equity
	Fee              float64 `yaml:"fee"`
	InitialCash      float64 `yaml:"initial_cash"`
}

// NormalizeDust zeroes a position worth less than minNotional at price.
// It reports whether the account changed.
func NormalizeDust(a model.Account, price, minNotional float64) (model.Account, bool) {
	if a.Quantity == 0 && a.AvgPrice == 0 {
		return a, false
	}
	if a.Quantity > 0 && a.PositionValue(price) >= minNotional {
		return a, false
	}
	a.Quantity = 0
	a.AvgPrice = 0
	return a, true
}

// ApplyBuy spends notional KRW at price. The fee is taken from the
// quantity received, so the average price carries it.
func ApplyBuy(a model.Account, notional, price, fee float64) model.Account {
	qty := notional * (1 - fee) / price
	newQty := a.Quantity + qty
	a.AvgPrice = (a.AvgPrice*a.Quantity + notional) / newQty
	a.Quantity = newQty
	a.Cash -= notional
	return a
}

// ApplySell liquidates the whole position at price and returns the proceeds.
func ApplySell(a model.Account, price, fee float64) (model.Account, float64) {
	proceeds := a.Quantity * price * (1 - fee)
	a.Cash += proceeds
	a.Quantity = 0
	a.AvgPrice = 0
	return a, proceeds
}

// RealizedReturn is the net return of selling at price a position bought at avg.
func RealizedReturn(avg, price, fee float64) float64 {
	if avg <= 0 {
		return 0
	}
	return price*(1-fee)/avg - 1
}

func floorKRW(v float64) float64 {
	return decimal.NewFromFloat(v).Floor().InexactFloat64()
}
