package calculator

import (
	"errors"
	"fmt"

	talib "github.com/markcheno/go-talib"

	"TradeSentinel/internal/model"
)

var errPeriod = errors.New("period must be positive")

// SMA computes the simple moving average series of values.
// The first period-1 slots carry the first full-window value.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkWindow(len(values), period, period-1); err != nil {
		return nil, fmt.Errorf("sma(%d): %w", period, err)
	}
	return fillWarmup(talib.Sma(values, period), period-1), nil
}

// EMA computes the SMA-seeded exponential moving average series of values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkWindow(len(values), period, period-1); err != nil {
		return nil, fmt.Errorf("ema(%d): %w", period, err)
	}
	return fillWarmup(talib.Ema(values, period), period-1), nil
}

// checkWindow verifies that n rows leave at least one defined value after
// a warm-up of lookback rows.
func checkWindow(n, period, lookback int) error {
	if period <= 0 {
		return errPeriod
	}
	if n <= lookback {
		return fmt.Errorf("%w: have %d rows, need %d", model.ErrInsufficientData, n, lookback+1)
	}
	return nil
}

// fillWarmup overwrites the undefined leading slots with the first defined value.
func fillWarmup(series []float64, lookback int) []float64 {
	if lookback <= 0 || lookback >= len(series) {
		return series
	}
	first := series[lookback]
	for i := 0; i < lookback; i++ {
		series[i] = first
	}
	return series
}

func extractCloses(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func extractVolumes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
