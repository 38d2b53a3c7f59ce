// Package sentiment fetches the crypto Fear & Greed index.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/model"
)

const (
	DefaultURL = "https://api.alternative.me/fng/?limit=1"
	// Neutral is returned when no value was ever fetched.
	Neutral = 50

	keyCurrent = "sentiment:fng"
	keyLast    = "sentiment:fng:last"
)

// FearGreed reads the index through an injected cache. Fresh values live
// for TTL; the last successful value is kept without expiry as a fallback.
type FearGreed struct {
	URL    string
	Client *http.Client
	Cache  cache.Store
	TTL    time.Duration
}

// NewFearGreed creates a source with a short request timeout.
func NewFearGreed(store cache.Store, ttl time.Duration) *FearGreed {
	return &FearGreed{
		URL:    DefaultURL,
		Client: &http.Client{Timeout: 5 * time.Second},
		Cache:  store,
		TTL:    ttl,
	}
}

type fngResponse struct {
	Name string `json:"name"`
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Score returns the index in [0,100]. When the fetch fails it returns the
// last known value (or Neutral) together with the error.
func (f *FearGreed) Score(ctx context.Context) (int, error) {
	var v int
	if ok, err := cache.GetJSON(ctx, f.Cache, keyCurrent, &v); err == nil && ok {
		return v, nil
	}

	v, err := f.fetch(ctx)
	if err != nil {
		last := Neutral
		if ok, cerr := cache.GetJSON(ctx, f.Cache, keyLast, &last); cerr != nil || !ok {
			last = Neutral
		}
		return last, err
	}

	if err := cache.SetJSON(ctx, f.Cache, keyCurrent, v, f.TTL); err != nil {
		log.Warn().Err(err).Msg("cache fear & greed value")
	}
	if err := cache.SetJSON(ctx, f.Cache, keyLast, v, 0); err != nil {
		log.Warn().Err(err).Msg("cache last fear & greed value")
	}
	return v, nil
}

func (f *FearGreed) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, model.Transient(fmt.Errorf("fetch fear & greed: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, model.Transient(fmt.Errorf("read fear & greed: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, model.StatusError("fear & greed", resp.StatusCode, body)
	}

	var r fngResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("decode fear & greed: %w", err)
	}
	if len(r.Data) == 0 {
		return 0, fmt.Errorf("fear & greed: empty data")
	}
	v, err := strconv.Atoi(r.Data[0].Value)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("fear & greed: bad value %q", r.Data[0].Value)
	}
	return v, nil
}
