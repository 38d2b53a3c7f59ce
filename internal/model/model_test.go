package model

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundary(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 29, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), Fine.Boundary(ts))
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), Coarse.Boundary(ts))

	kst := time.FixedZone("KST", 9*3600)
	local := time.Date(2025, 3, 1, 19, 30, 0, 0, kst)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), Fine.Boundary(local))
}

func TestCandleComplete(t *testing.T) {
	c := Candle{Time: time.Unix(1700000000, 0), Open: 1, High: 2, Low: 1, Close: 2, Volume: 3}
	assert.True(t, c.Complete())

	c.Volume = math.NaN()
	assert.False(t, c.Complete())

	assert.False(t, Candle{Open: 1, High: 1, Low: 1, Close: 1}.Complete())
}

func TestSummarizePatterns(t *testing.T) {
	history := []PatternHistoryEntry{
		{Label: "cup", Result: 0.04, Settled: true},
		{Label: "cup", Result: -0.02, Settled: true},
		{Label: "cup"},
		{Label: "flag", Result: 0.10, Settled: true},
	}
	st := SummarizePatterns("cup", history)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 2, st.Settled)
	assert.InDelta(t, 0.5, st.WinRate, 1e-9)
	assert.InDelta(t, 0.01, st.AvgReturn, 1e-9)

	empty := SummarizePatterns("wedge", history)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.WinRate)
}

func TestPatternIntervalCovers(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := PatternInterval{Label: "cup", Start: start, End: start.Add(time.Hour)}
	assert.True(t, p.Covers(start))
	assert.True(t, p.Covers(start.Add(time.Hour)))
	assert.False(t, p.Covers(start.Add(-time.Second)))
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionBuy, ParseAction("buy"))
	assert.Equal(t, ActionSell, ParseAction("sell"))
	assert.Equal(t, ActionHold, ParseAction("BUY"))
	assert.Equal(t, ActionHold, ParseAction(""))
}

func TestStatusError(t *testing.T) {
	assert.ErrorIs(t, StatusError("upbit", http.StatusBadGateway, nil), ErrTransient)
	assert.ErrorIs(t, StatusError("upbit", http.StatusTooManyRequests, nil), ErrTransient)

	err := StatusError("upbit", http.StatusBadRequest, []byte("bad market"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransient))
	assert.Contains(t, err.Error(), "bad market")
}

func TestAccount(t *testing.T) {
	a := Account{Cash: 10000, Quantity: 0.001, AvgPrice: 9e7}
	assert.True(t, a.Holding())
	assert.InDelta(t, 100000, a.PositionValue(1e8), 1e-6)
	assert.InDelta(t, 110000, a.Equity(1e8), 1e-6)
	assert.False(t, Account{Cash: 1}.Holding())
}
