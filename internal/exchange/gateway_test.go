package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/model"
)

func TestGetBalances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances", r.URL.Path)
		assert.Equal(t, "KRW-BTC", r.URL.Query().Get("market"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"cash":"12345.5","quantity":"0.00123456","avg_price":"95000000"}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "tok", "KRW-BTC", "", 0)
	a, err := g.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Account{Cash: 12345.5, Quantity: 0.00123456, AvgPrice: 95000000}, a)
}

func TestBuyMarketFloorsNotional(t *testing.T) {
	var got buyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/market-buy", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"order_id":"o1","state":"done"}`))
	}))
	defer srv.Close()

	require.NoError(t, NewGateway(srv.URL, "", "KRW-BTC", "", 0).BuyMarket(context.Background(), 10000.9))
	assert.Equal(t, buyRequest{Market: "KRW-BTC", Notional: "10000"}, got)
}

func TestSellMarketTruncatesQuantity(t *testing.T) {
	var got sellRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"order_id":"o2","state":"wait"}`))
	}))
	defer srv.Close()

	require.NoError(t, NewGateway(srv.URL, "", "KRW-BTC", "", 0).SellMarket(context.Background(), 0.123456789))
	assert.Equal(t, "0.12345678", got.Quantity)
}

func TestRejectsDustOrders(t *testing.T) {
	g := NewGateway("http://127.0.0.1:1", "", "KRW-BTC", "", 0)
	assert.Error(t, g.BuyMarket(context.Background(), 0.5))
	assert.Error(t, g.SellMarket(context.Background(), 1e-10))
}

func TestStatusErrors(t *testing.T) {
	code := http.StatusBadGateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer srv.Close()
	g := NewGateway(srv.URL, "", "KRW-BTC", "", 0)

	_, err := g.GetBalances(context.Background())
	assert.ErrorIs(t, err, model.ErrTransient)

	code = http.StatusBadRequest
	err = g.BuyMarket(context.Background(), 5000)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrTransient)
}
