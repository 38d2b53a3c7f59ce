package tuning

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

var base = calculator.Windows{SMA: 30, EMAFast: 12, EMASlow: 26, RSI: 14, ATR: 16, Volume: 20, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}

var opts = Options{InitialCash: 1_000_000, TakeProfit: 0.05, StopLoss: 0.06, Base: base}

// breakout is 60 quiet candles at 100, a volume spike at 101, then a run
// to 107 that hits the take-profit band.
func breakout() []model.Candle {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 0, 70)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 101, 103, 107)
	for len(closes) < 70 {
		closes = append(closes, 107)
	}
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		vol := 10.0
		if i == 60 {
			vol = 100
		}
		out[i] = model.Candle{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: vol}
	}
	return out
}

func TestBacktestTakeProfit(t *testing.T) {
	r, err := Backtest(breakout(), Params{SMA: 20, ATR: 14, VolumeSpike: 2.0}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalTrades)
	assert.Equal(t, 1, r.TotalSells)
	assert.Equal(t, 100.0, r.WinRate)
	assert.Equal(t, 5.94, r.AvgProfitPct)
	assert.Equal(t, 0.0, r.AvgLossPct)
	assert.Equal(t, 5.94, r.TotalReturnPct)
}

func TestBacktestNoSpikeNoTrades(t *testing.T) {
	r, err := Backtest(breakout(), Params{SMA: 20, ATR: 14, VolumeSpike: 20}, opts)
	require.NoError(t, err)
	assert.Zero(t, r.TotalTrades)
	assert.Zero(t, r.TotalReturnPct)
}

func TestBacktestInsufficient(t *testing.T) {
	_, err := Backtest(breakout()[:10], Params{SMA: 20, ATR: 14, VolumeSpike: 2}, opts)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestSearchSortsByReturn(t *testing.T) {
	g := Grid{SMA: []int{20, 30}, ATR: []int{14}, VolumeSpike: []float64{2.0, 20}}
	res, err := Search(context.Background(), breakout(), g, opts)
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, 5.94, res[0].TotalReturnPct)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].TotalReturnPct, res[i].TotalReturnPct)
	}
}

func TestSearchNothingEvaluable(t *testing.T) {
	_, err := Search(context.Background(), breakout()[:5], DefaultGrid, opts)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestLoadCSV(t *testing.T) {
	in := `datetime,open,high,low,close,volume
2024-01-01 00:15:00,2,3,1,2.5,10
2024-01-01 00:00:00,1,2,0.5,1.5,5
`
	candles, err := LoadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1.5, candles[0].Close)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), candles[1].Time)
}

func TestLoadCSVTimestampColumn(t *testing.T) {
	in := "timestamp,open,high,low,close,volume\n1704067200,1,1,1,1,1\n"
	candles, err := LoadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].Time)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("datetime,open,high,low,close\n"))
	assert.ErrorContains(t, err, "volume")

	_, err = LoadCSV(strings.NewReader("datetime,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Result{{Params: Params{SMA: 20, ATR: 14, VolumeSpike: 1.5}, TotalTrades: 2, TotalReturnPct: 5.94}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "20,14,1.5,2,0,0.00,0.00,0.00,5.94", lines[1])
}
