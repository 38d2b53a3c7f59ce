package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/model"
)

// CachedFetcher serves recent candle requests from a cache. Entries are
// scoped to the candle period they were fetched in and never outlive it, so
// a bar cached while forming is refetched once its period has closed.
type CachedFetcher struct {
	Next  Fetcher
	Cache cache.Store
	TTL   time.Duration

	now func() time.Time
}

func (c *CachedFetcher) Name() string { return c.Next.Name() + "+cache" }

func (c *CachedFetcher) FetchCandles(ctx context.Context, market string, tf model.Timeframe, count int) ([]model.Candle, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now()
	period := tf.Boundary(t)
	key := fmt.Sprintf("candles:%s:%s:%d:%d:%d", c.Next.Name(), market, int(tf), count, period.Unix())
	ttl := c.TTL
	if left := period.Add(tf.Duration()).Sub(t); ttl <= 0 || left < ttl {
		ttl = left
	}
	var candles []model.Candle
	ok, err := cache.GetJSON(ctx, c.Cache, key, &candles)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("candle cache read failed")
	}
	if ok {
		return candles, nil
	}

	candles, err = c.Next.FetchCandles(ctx, market, tf, count)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.Cache, key, candles, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("candle cache write failed")
	}
	return candles, nil
}
