package fund

import "TradeSentinel/internal/model"

// Order is a sized order ready for execution. A zero Order means skip.
type Order struct {
	Action   model.Action
	Notional float64 // KRW spent on a buy, estimated proceeds on a sell
	Quantity float64 // BTC sold; zero for buys
	Reason   string  // why the order was skipped
}

// Skipped reports whether nothing should be sent.
func (o Order) Skipped() bool { return o.Notional <= 0 }

// SizeBuy computes a risk-based buy notional. The risk budget is
// RiskFraction of equity; divided by ATR it gives the quantity whose
// one-ATR move loses the budget. The notional is capped by MaxTradeFraction
// of equity, raised to MinOrder, then clamped to cash.
func SizeBuy(a model.Account, price, atr float64, cfg Config) Order {
	if a.Cash < cfg.MinOrder || price <= 0 {
		return Order{Action: model.ActionBuy, Reason: model.ReasonBelowMinimum}
	}
	equity := a.Equity(price)

	notional := cfg.MinOrder
	if atr > 0 {
		notional = equity * cfg.RiskFraction / atr * price
	}
	if limit := equity * cfg.MaxTradeFraction; notional > limit {
		notional = limit
	}
	notional = floorKRW(notional)
	if notional < cfg.MinOrder {
		notional = cfg.MinOrder
	}
	if notional > a.Cash {
		notional = floorKRW(a.Cash)
	}
	if notional < cfg.MinOrder {
		return Order{Action: model.ActionBuy, Reason: model.ReasonBelowMinimum}
	}
	return Order{Action: model.ActionBuy, Notional: notional}
}

// SizeSell liquidates the whole position.
func SizeSell(a model.Account, price float64, cfg Config) Order {
	if !a.Holding() {
		return Order{Action: model.ActionSell, Reason: model.ReasonNoPosition}
	}
	value := a.PositionValue(price)
	if value < cfg.MinOrder {
		return Order{Action: model.ActionSell, Reason: model.ReasonBelowMinimum}
	}
	return Order{Action: model.ActionSell, Notional: value, Quantity: a.Quantity}
}

// Size dispatches on the decision's action. Holds always skip.
func Size(d model.Decision, a model.Account, price, atr float64, cfg Config) Order {
	switch d.Action {
	case model.ActionBuy:
		return SizeBuy(a, price, atr, cfg)
	case model.ActionSell:
		return SizeSell(a, price, cfg)
	}
	return Order{Action: model.ActionHold, Reason: d.Reason}
}
