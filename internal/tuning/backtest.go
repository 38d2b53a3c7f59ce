package tuning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/strategy"
)

// Params is one grid point.
type Params struct {
	SMA         int     `json:"sma_window"`
	ATR         int     `json:"atr_window"`
	VolumeSpike float64 `json:"volume_threshold"`
}

// Result is the performance of one grid point. Percentages are in percent.
type Result struct {
	Params
	TotalTrades    int     `json:"total_trades"`
	TotalSells     int     `json:"total_sells"`
	WinRate        float64 `json:"win_rate"`
	AvgProfitPct   float64 `json:"avg_profit_pct"`
	AvgLossPct     float64 `json:"avg_loss_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
}

// Options are the fixed simulation settings.
type Options struct {
	InitialCash float64
	TakeProfit  float64
	StopLoss    float64
	Fee         float64
	Base        calculator.Windows // non-grid windows
}

// Grid lists the candidate values of each parameter.
type Grid struct {
	SMA         []int
	ATR         []int
	VolumeSpike []float64
}

// DefaultGrid is the search space used by the tuning tool.
var DefaultGrid = Grid{
	SMA:         []int{20, 25, 30, 35, 40},
	ATR:         []int{10, 12, 14, 16},
	VolumeSpike: []float64{1.5, 2.0, 2.5},
}

// Backtest simulates all-in entries when a volume spike closes above the
// SMA, and full exits at the take-profit or stop-loss band or when price
// closes back under the SMA.
func Backtest(candles []model.Candle, p Params, opt Options) (Result, error) {
	w := opt.Base
	w.SMA, w.ATR = p.SMA, p.ATR
	f, err := calculator.Compute(candles, w)
	if err != nil {
		return Result{}, err
	}

	res := Result{Params: p}
	cash, qty, entry := opt.InitialCash, 0.0, 0.0
	var pnls []float64

	// rows before the longest window hold warm-up values
	for i := w.Longest() - 1; i < f.Len(); i++ {
		ind := f.At(i)
		c := f.Candles[i]
		spike := strategy.IsVolumeSpike(c.Volume, ind.VolumeMA, p.VolumeSpike)

		switch {
		case qty == 0 && cash > 0 && spike && ind.Price > ind.SMA:
			qty = cash * (1 - opt.Fee) / ind.Price
			entry = ind.Price
			cash = 0
			res.TotalTrades++
		case qty > 0 && (ind.Price >= entry*(1+opt.TakeProfit) ||
			ind.Price <= entry*(1-opt.StopLoss) || ind.Price < ind.SMA):
			cash = qty * ind.Price * (1 - opt.Fee)
			qty = 0
			pnls = append(pnls, (ind.Price-entry)/entry*100)
			res.TotalTrades++
			res.TotalSells++
		}
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, pnl := range pnls {
		if pnl > 0 {
			wins++
			winSum += pnl
		} else {
			losses++
			lossSum += pnl
		}
	}
	if res.TotalSells > 0 {
		res.WinRate = round2(float64(wins) / float64(res.TotalSells) * 100)
	}
	if wins > 0 {
		res.AvgProfitPct = round2(winSum / float64(wins))
	}
	if losses > 0 {
		res.AvgLossPct = round2(lossSum / float64(losses))
	}
	final := cash + qty*f.Last().Close
	res.TotalReturnPct = round2((final - opt.InitialCash) / opt.InitialCash * 100)
	return res, nil
}

// Search backtests every grid point concurrently and returns the results
// sorted by total return, best first. Points that cannot be evaluated are
// logged and left out.
func Search(ctx context.Context, candles []model.Candle, g Grid, opt Options) ([]Result, error) {
	var points []Params
	for _, s := range g.SMA {
		for _, a := range g.ATR {
			for _, v := range g.VolumeSpike {
				points = append(points, Params{SMA: s, ATR: a, VolumeSpike: v})
			}
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("empty grid")
	}

	results := make([]*Result, len(points))
	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)
	for i, p := range points {
		wg.Add(1)
		go func(i int, p Params) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			r, err := Backtest(candles, p, opt)
			if err != nil {
				log.Warn().Err(err).Interface("params", p).Msg("backtest skipped")
				return
			}
			results[i] = &r
		}(i, p)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no grid point could be evaluated: %w", model.ErrInsufficientData)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalReturnPct > out[j].TotalReturnPct })
	return out, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
