package fund

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Exchange is the live trading capability.
type Exchange interface {
	GetBalances(ctx context.Context) (model.Account, error)
	BuyMarket(ctx context.Context, notional float64) error
	SellMarket(ctx context.Context, quantity float64) error
}

// AccountStore persists the simulated account.
type AccountStore interface {
	LoadAccount(ctx context.Context) (model.Account, error)
	SaveAccount(ctx context.Context, a model.Account) error
}

// Executor loads the account and carries out sized orders.
type Executor interface {
	Mode() string
	Account(ctx context.Context) (model.Account, error)
	// Execute places o. The returned account is the state after the order;
	// on failure it is the unchanged input and Execution.Executed is false.
	Execute(ctx context.Context, o Order, a model.Account, price float64) (model.Execution, model.Account, error)
}

func execution(o Order, a model.Account, price float64) model.Execution {
	ex := model.Execution{Executed: true, Notional: o.Notional, Quantity: o.Quantity, Price: price}
	if eq := a.Equity(price); eq > 0 {
		ex.Fraction = o.Notional / eq * 100
	}
	return ex
}

// Paper mutates a locally persisted account using the candle close.
type Paper struct {
	cfg   Config
	store AccountStore
}

// NewPaper creates a simulated executor.
func NewPaper(cfg Config, store AccountStore) *Paper {
	return &Paper{cfg: cfg, store: store}
}

func (p *Paper) Mode() string { return "paper" }

func (p *Paper) Account(ctx context.Context) (model.Account, error) {
	return p.store.LoadAccount(ctx)
}

// SaveAccount persists a corrected account, such as after dust clearing.
func (p *Paper) SaveAccount(ctx context.Context, a model.Account) error {
	return p.store.SaveAccount(ctx, a)
}

func (p *Paper) Execute(ctx context.Context, o Order, a model.Account, price float64) (model.Execution, model.Account, error) {
	if o.Skipped() {
		return model.Execution{Reason: o.Reason}, a, nil
	}
	ex := execution(o, a, price)
	var next model.Account
	switch o.Action {
	case model.ActionBuy:
		next = ApplyBuy(a, o.Notional, price, p.cfg.Fee)
		ex.Quantity = next.Quantity - a.Quantity
	case model.ActionSell:
		next, ex.Notional = ApplySell(a, price, p.cfg.Fee)
	default:
		return model.Execution{Reason: o.Reason}, a, nil
	}
	if err := p.store.SaveAccount(ctx, next); err != nil {
		return model.Execution{Reason: model.ReasonOrderFailed}, a, fmt.Errorf("save account: %w", err)
	}
	return ex, next, nil
}

// Live places real orders and re-reads balances after every fill.
type Live struct {
	cfg Config
	ex  Exchange
}

// NewLive creates a live executor.
func NewLive(cfg Config, ex Exchange) *Live {
	return &Live{cfg: cfg, ex: ex}
}

func (l *Live) Mode() string { return "live" }

func (l *Live) Account(ctx context.Context) (model.Account, error) {
	return l.ex.GetBalances(ctx)
}

func (l *Live) Execute(ctx context.Context, o Order, a model.Account, price float64) (model.Execution, model.Account, error) {
	if o.Skipped() {
		return model.Execution{Reason: o.Reason}, a, nil
	}
	var err error
	switch o.Action {
	case model.ActionBuy:
		err = l.ex.BuyMarket(ctx, o.Notional)
	case model.ActionSell:
		err = l.ex.SellMarket(ctx, o.Quantity)
	default:
		return model.Execution{Reason: o.Reason}, a, nil
	}
	if err != nil {
		return model.Execution{Reason: model.ReasonOrderFailed}, a, fmt.Errorf("%s order: %w", o.Action, err)
	}

	ex := execution(o, a, price)
	synced, err := l.ex.GetBalances(ctx)
	if err != nil {
		// the order filled, so the input account is known to be wrong; report
		// the locally projected balances and flag them until the next read
		projected := ApplyBuy(a, o.Notional, price, l.cfg.Fee)
		if o.Action == model.ActionSell {
			projected, ex.Notional = ApplySell(a, price, l.cfg.Fee)
		} else {
			ex.Quantity = projected.Quantity - a.Quantity
		}
		ex.Unsynced = true
		log.Error().Err(err).Str("action", string(o.Action)).Msg("balance resync after fill failed, using projected balances")
		return ex, projected, fmt.Errorf("resync after %s: %w", o.Action, err)
	}
	if o.Action == model.ActionBuy {
		ex.Quantity = synced.Quantity - a.Quantity
	}
	return ex, synced, nil
}
