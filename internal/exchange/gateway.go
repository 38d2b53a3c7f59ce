// Package exchange places live orders through an order gateway that holds
// the exchange credentials and signs requests on the bot's behalf.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"TradeSentinel/internal/model"
)

// Gateway implements fund.Exchange against the gateway REST API.
type Gateway struct {
	BaseURL string
	Token   string
	Market  string
	Client  *http.Client
}

// NewGateway creates a gateway client with optional proxy support.
func NewGateway(baseURL, token, market, proxyURL string, timeout time.Duration) *Gateway {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Market:  market,
		Client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

type balances struct {
	Cash     decimal.Decimal `json:"cash"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

type buyRequest struct {
	Market   string `json:"market"`
	Notional string `json:"notional"`
}

type sellRequest struct {
	Market   string `json:"market"`
	Quantity string `json:"quantity"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
}

// GetBalances returns KRW cash and the BTC position.
func (g *Gateway) GetBalances(ctx context.Context) (model.Account, error) {
	var b balances
	if err := g.do(ctx, http.MethodGet, "/balances?market="+url.QueryEscape(g.Market), nil, &b); err != nil {
		return model.Account{}, fmt.Errorf("get balances: %w", err)
	}
	return model.Account{
		Cash:     b.Cash.InexactFloat64(),
		Quantity: b.Quantity.InexactFloat64(),
		AvgPrice: b.AvgPrice.InexactFloat64(),
	}, nil
}

// BuyMarket spends notional KRW, floored to the won.
func (g *Gateway) BuyMarket(ctx context.Context, notional float64) error {
	amount := decimal.NewFromFloat(notional).Floor()
	if !amount.IsPositive() {
		return fmt.Errorf("buy: notional %v rounds to zero", notional)
	}
	var resp orderResponse
	if err := g.do(ctx, http.MethodPost, "/orders/market-buy", buyRequest{Market: g.Market, Notional: amount.String()}, &resp); err != nil {
		return fmt.Errorf("market buy: %w", err)
	}
	log.Info().Str("order_id", resp.OrderID).Str("state", resp.State).Str("notional", amount.String()).Msg("market buy placed")
	return nil
}

// SellMarket sells quantity BTC, truncated to satoshis.
func (g *Gateway) SellMarket(ctx context.Context, quantity float64) error {
	qty := decimal.NewFromFloat(quantity).Truncate(8)
	if !qty.IsPositive() {
		return fmt.Errorf("sell: quantity %v truncates to zero", quantity)
	}
	var resp orderResponse
	if err := g.do(ctx, http.MethodPost, "/orders/market-sell", sellRequest{Market: g.Market, Quantity: qty.String()}, &resp); err != nil {
		return fmt.Errorf("market sell: %w", err)
	}
	log.Info().Str("order_id", resp.OrderID).Str("state", resp.State).Str("quantity", qty.String()).Msg("market sell placed")
	return nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return model.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return model.StatusError("gateway", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
