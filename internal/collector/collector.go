package collector

import (
	"context"
	"fmt"
	"time"

	"TradeSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Fine   []model.Candle
	Coarse []model.Candle
	Err    error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(_ context.Context, _ string, tf model.Timeframe, count int) ([]model.Candle, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	switch {
	case tf == model.Fine && m.Fine != nil:
		return m.Fine, nil
	case tf == model.Coarse && m.Coarse != nil:
		return m.Coarse, nil
	case tf == model.Coarse && m.Fine != nil:
		return Aggregate(m.Fine, tf), nil
	}
	return generateMockCandles(m.Price, tf, count, time.Now()), nil
}

func generateMockCandles(basePrice float64, tf model.Timeframe, count int, now time.Time) []model.Candle {
	end := tf.Boundary(now)
	out := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		out[i] = model.Candle{
			Time:   end.Add(-time.Duration(count-i) * tf.Duration()),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 10,
		}
	}
	return out
}

// Aggregate folds candles into the coarser timeframe tf. Partial buckets
// are kept.
func Aggregate(candles []model.Candle, tf model.Timeframe) []model.Candle {
	var out []model.Candle
	for _, c := range candles {
		start := tf.Boundary(c.Time)
		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			b := &out[n-1]
			if c.High > b.High {
				b.High = c.High
			}
			if c.Low < b.Low {
				b.Low = c.Low
			}
			b.Close = c.Close
			b.Volume += c.Volume
			continue
		}
		c.Time = start
		out = append(out, c)
	}
	return out
}

// Collector fetches the fine and coarse windows of one market.
type Collector struct {
	Fetcher       Fetcher
	Market        string
	Count         int
	CompletedOnly bool // drop a trailing candle whose period has not closed
	now           func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, market string, count int, completedOnly bool) *Collector {
	return &Collector{Fetcher: fetcher, Market: market, Count: count, CompletedOnly: completedOnly, now: time.Now}
}

// Recent returns the latest candles of tf, oldest first.
func (c *Collector) Recent(ctx context.Context, tf model.Timeframe) ([]model.Candle, error) {
	candles, err := c.Fetcher.FetchCandles(ctx, c.Market, tf, c.Count)
	if err != nil {
		return nil, fmt.Errorf("fetch %dm candles from %s: %w", int(tf), c.Fetcher.Name(), err)
	}
	if c.CompletedOnly && len(candles) > 0 {
		last := candles[len(candles)-1]
		if last.Time.Add(tf.Duration()).After(c.now()) {
			candles = candles[:len(candles)-1]
		}
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("fetch %dm candles: %w", int(tf), model.ErrInsufficientData)
	}
	return candles, nil
}
