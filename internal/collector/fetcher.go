package collector

import (
	"context"

	"TradeSentinel/internal/model"
)

// Fetcher returns the most recent candles of one market, oldest first.
type Fetcher interface {
	FetchCandles(ctx context.Context, market string, tf model.Timeframe, count int) ([]model.Candle, error)
	Name() string
}
