package calculator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// RSI computes the Wilder-smoothed relative strength index of closes.
// Requires at least period+1 values.
func RSI(closes []float64, period int) ([]float64, error) {
	if err := checkWindow(len(closes), period, period); err != nil {
		return nil, fmt.Errorf("rsi(%d): %w", period, err)
	}
	return fillWarmup(talib.Rsi(closes, period), period), nil
}
