package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

var testConfig = Config{
	Lookback: 3, ReboundPct: 0.01, DropPct: 0.01, DojiTolerance: 0.001, VolumeSpike: 2.0,
	StopLoss: 0.06, TakeProfit: 0.05, Fee: 0.0005, GreedThreshold: 70, AIMinCandles: 5,
}

var testGate = GateConfig{RSIOverride: 40, MACDThreshold: 2500, FearThreshold: 50}

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// flat returns n quiet candles closing at price.
func flat(n int, price float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			Time: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10,
		}
	}
	return out
}

// frame wraps candles with constant indicator columns; EMAs track the close.
func frame(candles []model.Candle, sma, volumeMA, macd float64) *calculator.Frame {
	n := len(candles)
	f := &calculator.Frame{Candles: candles}
	f.SMA = repeat(n, sma)
	f.VolumeMA = repeat(n, volumeMA)
	f.MACDDiff = repeat(n, macd)
	f.RSI = repeat(n, 50)
	f.ATR = repeat(n, 2)
	f.EMAFast = make([]float64, n)
	f.EMASlow = make([]float64, n)
	for i, c := range candles {
		f.EMAFast[i], f.EMASlow[i] = c.Close, c.Close
	}
	return f
}

func repeat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// withTail replaces the last candles of a flat window, keeping timestamps.
func withTail(base []model.Candle, tail ...model.Candle) []model.Candle {
	out := append([]model.Candle(nil), base...)
	off := len(out) - len(tail)
	for i, c := range tail {
		c.Time = out[off+i].Time
		out[off+i] = c
	}
	return out
}

func doubleBottom(base []model.Candle) []model.Candle {
	return withTail(base,
		model.Candle{Open: 100, High: 101, Low: 100, Close: 100, Volume: 10},
		model.Candle{Open: 95, High: 96, Low: 90, Close: 92, Volume: 10},
		model.Candle{Open: 96, High: 106, Low: 95, Close: 105, Volume: 10},
	)
}

func newContext(f *calculator.Frame, acct model.Account, sentiment int) *Context {
	return &Context{CandleTS: f.Last().Time, Fine: f, Account: acct, Sentiment: sentiment}
}

func TestDoubleBottomBuys(t *testing.T) {
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)
	sc := newContext(frame(doubleBottom(flat(10, 100)), 100, 10, 0), model.Account{Cash: 30000}, 50)

	v := e.Decide(context.Background(), sc)
	assert.Equal(t, model.ActionBuy, v.Decision.Action)
	assert.Equal(t, model.PatternDoubleBottom, v.Decision.Pattern)
	assert.False(t, v.Vetoed)
}

func TestStopLossBeatsFreshBuyPattern(t *testing.T) {
	candles := withTail(flat(10, 9500),
		model.Candle{Open: 9500, High: 9510, Low: 9500, Close: 9500, Volume: 10},
		model.Candle{Open: 8900, High: 8950, Low: 8800, Close: 8900, Volume: 10},
		model.Candle{Open: 8950, High: 9010, Low: 8900, Close: 9000, Volume: 10},
	)
	sc := newContext(frame(candles, 9000, 10, 0), model.Account{Quantity: 1, AvgPrice: 10000}, 50)
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)

	require.True(t, IsDoubleBottom(sc.Fine.Tail(3), testConfig.ReboundPct))
	v := e.Decide(context.Background(), sc)
	assert.Equal(t, model.ActionSell, v.Decision.Action)
	assert.Equal(t, model.ReasonStopLoss, v.Decision.Reason)
}

func TestPriceBetweenBandsFallsThrough(t *testing.T) {
	sc := newContext(frame(flat(10, 10500), 10500, 10, 0), model.Account{Quantity: 1, AvgPrice: 10000}, 50)
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)

	d, results := e.Evaluate(context.Background(), sc)
	assert.Equal(t, model.ActionHold, d.Action)
	assert.Equal(t, model.ReasonNoSignal, d.Reason)
	require.NotEmpty(t, results)
	assert.Equal(t, "exit", results[0].Stage)
	assert.Equal(t, NoSignal, results[0].Status)
	assert.Len(t, results, 6)
}

func TestTakeProfitAndTrendExit(t *testing.T) {
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)
	acct := model.Account{Quantity: 1, AvgPrice: 10000}

	d, _ := e.Evaluate(context.Background(), newContext(frame(flat(10, 10520), 10520, 10, 0), acct, 50))
	assert.Equal(t, model.ReasonTakeProfit, d.Reason)

	d, _ = e.Evaluate(context.Background(), newContext(frame(flat(10, 10200), 10200, 10, -5), acct, 75))
	assert.Equal(t, model.ActionSell, d.Action)
	assert.Equal(t, model.ReasonTrendSell, d.Reason)

	d, _ = e.Evaluate(context.Background(), newContext(frame(flat(10, 10200), 10200, 10, 5), acct, 75))
	assert.Equal(t, model.ActionHold, d.Action)
}

func TestTakeProfitTarget(t *testing.T) {
	assert.InDelta(t, 10510.505, TakeProfitTarget(10000, 0.05, 0.0005), 0.01)
	assert.InDelta(t, 9400, StopLossLevel(10000, 0.06), 1e-9)
}

func TestGateVetoesEntries(t *testing.T) {
	fine := frame(doubleBottom(flat(10, 100)), 100, 10, 0)
	coarse := frame(flat(10, 120), 120, 10, 9000)
	coarse.RSI = repeat(10, 60)
	sc := &Context{CandleTS: fine.Last().Time, Fine: fine, Coarse: coarse, Account: model.Account{Cash: 30000}, Sentiment: 60}
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)

	d, _ := e.Evaluate(context.Background(), sc)
	require.Equal(t, model.ActionBuy, d.Action)

	v := e.Decide(context.Background(), sc)
	assert.True(t, v.Vetoed)
	assert.False(t, v.Gate.Pass)
	assert.Equal(t, model.ActionHold, v.Decision.Action)
	assert.Equal(t, model.ReasonTrendVeto, v.Decision.Reason)
}

func TestGateVetoStillAllowsStopLoss(t *testing.T) {
	fine := frame(flat(10, 9000), 9000, 10, 0)
	coarse := frame(flat(10, 12000), 12000, 10, 9000)
	coarse.RSI = repeat(10, 60)
	sc := &Context{CandleTS: fine.Last().Time, Fine: fine, Coarse: coarse, Account: model.Account{Quantity: 1, AvgPrice: 10000}, Sentiment: 60}

	v := NewEngine(testConfig, NewGate(testGate), nil, nil).Decide(context.Background(), sc)
	assert.False(t, v.Vetoed)
	assert.Equal(t, model.ReasonStopLoss, v.Decision.Reason)
}

// failingCoarse is a coarse frame far above price with no override in reach.
func failingCoarse() *calculator.Frame {
	coarse := frame(flat(10, 12000), 12000, 10, 9000)
	coarse.RSI = repeat(10, 60)
	return coarse
}

func TestGateVetoLetsSignalSellsExit(t *testing.T) {
	held := model.Account{Quantity: 1, AvgPrice: 10000}
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)

	// price under the fine SMA
	fine := frame(flat(10, 9900), 10000, 10, 0)
	sc := &Context{CandleTS: fine.Last().Time, Fine: fine, Coarse: failingCoarse(), Account: held, Sentiment: 60}
	v := e.Decide(context.Background(), sc)
	require.False(t, v.Gate.Pass)
	assert.False(t, v.Vetoed)
	assert.Equal(t, model.ActionSell, v.Decision.Action)
	assert.Equal(t, model.ReasonPriceBelowSMA, v.Decision.Reason)

	// dead cross with price above the fine SMA
	fine = frame(flat(10, 9900), 9800, 10, 0)
	fine.EMAFast[8], fine.EMASlow[8] = 9900, 9900
	fine.EMAFast[9], fine.EMASlow[9] = 9890, 9900
	sc = &Context{CandleTS: fine.Last().Time, Fine: fine, Coarse: failingCoarse(), Account: held, Sentiment: 60}
	v = e.Decide(context.Background(), sc)
	require.False(t, v.Gate.Pass)
	assert.False(t, v.Vetoed)
	assert.Equal(t, model.ActionSell, v.Decision.Action)
	assert.Equal(t, model.ReasonDeadCross, v.Decision.Reason)
}

func TestGateVetoKeepsBlockedPattern(t *testing.T) {
	fine := frame(withTail(flat(10, 9900), model.Candle{Open: 9900, High: 10400, Low: 9900, Close: 10400, Volume: 50}), 9800, 10, 0)
	sc := &Context{CandleTS: fine.Last().Time, Fine: fine, Coarse: failingCoarse(), Account: model.Account{Cash: 30000}, Sentiment: 60}

	v := NewEngine(testConfig, NewGate(testGate), nil, nil).Decide(context.Background(), sc)
	assert.True(t, v.Vetoed)
	assert.Equal(t, model.ActionHold, v.Decision.Action)
	assert.Equal(t, model.ReasonTrendVeto, v.Decision.Reason)
	assert.Equal(t, model.ReasonVolumeSMA, v.Decision.Pattern)
}

func TestVolumeSMAStrategy(t *testing.T) {
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)
	candles := withTail(flat(10, 100), model.Candle{Open: 100, High: 110, Low: 100, Close: 110, Volume: 50})

	d, _ := e.Evaluate(context.Background(), newContext(frame(candles, 100, 10, 0), model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ActionBuy, d.Action)
	assert.Equal(t, model.ReasonVolumeSMA, d.Reason)

	d, _ = e.Evaluate(context.Background(), newContext(frame(flat(10, 100), 105, 10, 0), model.Account{Quantity: 0.01, AvgPrice: 101}, 50))
	assert.Equal(t, model.ActionSell, d.Action)
	assert.Equal(t, model.ReasonPriceBelowSMA, d.Reason)
}

func TestEMACross(t *testing.T) {
	e := NewEngine(testConfig, NewGate(testGate), nil, nil)

	f := frame(flat(10, 100), 100, 10, 0)
	f.EMAFast[8], f.EMASlow[8] = 99, 100
	f.EMAFast[9], f.EMASlow[9] = 101, 100
	d, _ := e.Evaluate(context.Background(), newContext(f, model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ReasonGoldenCross, d.Reason)

	f = frame(flat(10, 100), 100, 10, 0)
	f.EMAFast[8], f.EMASlow[8] = 100, 100
	f.EMAFast[9], f.EMASlow[9] = 99, 100
	d, _ = e.Evaluate(context.Background(), newContext(f, model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ReasonDeadCross, d.Reason)

	banded := testConfig
	banded.EMACrossBand = 5
	d, _ = NewEngine(banded, NewGate(testGate), nil, nil).Evaluate(context.Background(), newContext(f, model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ActionHold, d.Action)
}

type stubAI struct {
	intervals []model.PatternInterval
	detectErr error
	action    model.Action
	decided   []string
	panics    bool
}

func (s *stubAI) DetectPatterns(context.Context, []model.Candle) ([]model.PatternInterval, error) {
	if s.panics {
		panic("boom")
	}
	return s.intervals, s.detectErr
}

func (s *stubAI) DecidePatternAction(_ context.Context, label string, _ []model.Candle, _ model.PatternStats) (model.Action, error) {
	s.decided = append(s.decided, label)
	return s.action, nil
}

type memHistory struct{ entries []model.PatternHistoryEntry }

func (m *memHistory) LoadPatternHistory(context.Context) ([]model.PatternHistoryEntry, error) {
	return m.entries, nil
}

func (m *memHistory) AppendPatternHistory(_ context.Context, e model.PatternHistoryEntry) (int64, error) {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func TestAIPatternStage(t *testing.T) {
	candles := flat(10, 100)
	last := candles[9].Time
	ai := &stubAI{
		intervals: []model.PatternInterval{
			{Label: "Cup And Handle", Start: last.Add(-time.Hour), End: last.Add(-30 * time.Minute)},
			{Label: "Double Top", Start: last.Add(-time.Hour), End: last},
			{Label: " Cup And Handle ", Start: last.Add(-time.Hour), End: last},
		},
		action: model.ActionBuy,
	}
	hist := &memHistory{}
	e := NewEngine(testConfig, NewGate(testGate), ai, hist)

	d, _ := e.Evaluate(context.Background(), newContext(frame(candles, 100, 10, 0), model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ActionBuy, d.Action)
	assert.Equal(t, "cup and handle", d.Pattern)
	assert.Equal(t, []string{"cup and handle"}, ai.decided)
	require.Len(t, hist.entries, 1)
	assert.Equal(t, hist.entries[0].ID, d.PatternEntry)
	assert.Equal(t, model.ActionBuy, hist.entries[0].Decision)
	assert.Zero(t, hist.entries[0].Result)
	assert.False(t, hist.entries[0].Settled)
}

func TestAIPatternHoldIsStillRecorded(t *testing.T) {
	candles := flat(10, 100)
	ai := &stubAI{
		intervals: []model.PatternInterval{{Label: "wedge", Start: t0, End: candles[9].Time}},
		action:    model.ActionHold,
	}
	hist := &memHistory{}
	d, _ := NewEngine(testConfig, NewGate(testGate), ai, hist).Evaluate(context.Background(), newContext(frame(candles, 100, 10, 0), model.Account{Cash: 30000}, 50))
	assert.Equal(t, model.ActionHold, d.Action)
	assert.Len(t, hist.entries, 1)
}

func TestAIPatternFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	sc := newContext(frame(flat(10, 100), 100, 10, 0), model.Account{Cash: 30000}, 50)

	_, results := NewEngine(testConfig, NewGate(testGate), &stubAI{detectErr: errors.New("down")}, nil).Evaluate(ctx, sc)
	assert.Equal(t, Unavailable, results[3].Status)

	_, results = NewEngine(testConfig, NewGate(testGate), &stubAI{panics: true}, nil).Evaluate(ctx, sc)
	assert.Equal(t, Unavailable, results[3].Status)
	assert.Len(t, results, 6)

	short := testConfig
	short.AIMinCandles = 100
	_, results = NewEngine(short, NewGate(testGate), &stubAI{}, nil).Evaluate(ctx, sc)
	assert.Equal(t, Insufficient, results[3].Status)
}
