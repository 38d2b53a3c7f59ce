package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"TradeSentinel/internal/model"
)

// UpbitMaxCount is the largest page the candle endpoint serves.
const UpbitMaxCount = 200

// UpbitFetcher implements Fetcher using Upbit's public quotation API.
type UpbitFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewUpbitFetcher creates a new fetcher with optional proxy support.
func NewUpbitFetcher(baseURL, proxyURL string, timeout time.Duration) *UpbitFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = "https://api.upbit.com"
	}
	return &UpbitFetcher{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *UpbitFetcher) Name() string { return "upbit" }

// upbitCandle is the JSON shape of one minute candle.
type upbitCandle struct {
	Market    string  `json:"market"`
	UTC       string  `json:"candle_date_time_utc"`
	Open      float64 `json:"opening_price"`
	High      float64 `json:"high_price"`
	Low       float64 `json:"low_price"`
	Close     float64 `json:"trade_price"`
	Volume    float64 `json:"candle_acc_trade_volume"`
	Timestamp int64   `json:"timestamp"`
}

const upbitTimeLayout = "2006-01-02T15:04:05"

func (f *UpbitFetcher) FetchCandles(ctx context.Context, market string, tf model.Timeframe, count int) ([]model.Candle, error) {
	if count > UpbitMaxCount {
		count = UpbitMaxCount
	}
	q := url.Values{}
	q.Set("market", market)
	q.Set("count", fmt.Sprint(count))
	endpoint := fmt.Sprintf("%s/v1/candles/minutes/%d?%s", f.BaseURL, int(tf), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, model.Transient(fmt.Errorf("upbit candles: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Transient(fmt.Errorf("read upbit candles: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.StatusError("upbit", resp.StatusCode, body)
	}

	var raw []upbitCandle
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode upbit candles: %w", err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, r := range raw {
		ts, err := time.ParseInLocation(upbitTimeLayout, r.UTC, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse candle time %q: %w", r.UTC, err)
		}
		candles = append(candles, model.Candle{
			Time: ts, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	// Upbit returns newest first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}
