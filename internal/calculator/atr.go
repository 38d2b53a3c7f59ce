package calculator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"TradeSentinel/internal/model"
)

// ATR computes the Wilder average true range of candles.
func ATR(candles []model.Candle, period int) ([]float64, error) {
	if err := checkWindow(len(candles), period, period); err != nil {
		return nil, fmt.Errorf("atr(%d): %w", period, err)
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	return fillWarmup(talib.Atr(highs, lows, extractCloses(candles), period), period), nil
}
