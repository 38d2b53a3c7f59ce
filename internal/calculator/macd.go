package calculator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// MACDDiff computes the MACD histogram (MACD line minus its signal line).
func MACDDiff(closes []float64, fast, slow, signal int) ([]float64, error) {
	if fast <= 0 || signal <= 0 || slow <= fast {
		return nil, fmt.Errorf("macd(%d,%d,%d): invalid periods", fast, slow, signal)
	}
	lookback := slow + signal - 2
	if err := checkWindow(len(closes), slow, lookback); err != nil {
		return nil, fmt.Errorf("macd(%d,%d,%d): %w", fast, slow, signal, err)
	}
	_, _, hist := talib.Macd(closes, fast, slow, signal)
	return fillWarmup(hist, lookback), nil
}
