package recorder

import (
	"context"
	"sync"
	"time"

	"TradeSentinel/internal/model"
)

// MemoryRecorder keeps everything in process memory. It is used for dry
// runs and tests; it does not survive a restart, so it cannot guard
// against repeated invocations.
type MemoryRecorder struct {
	mu          sync.Mutex
	claims      map[int64]string
	indicators  []IndicatorSnapshot
	trades      []TradeRecord
	patterns    []model.PatternHistoryEntry
	reflections []Reflection
	account     *model.Account
	initialCash float64
}

func NewMemoryRecorder(initialCash float64) *MemoryRecorder {
	return &MemoryRecorder{claims: map[int64]string{}, initialCash: initialCash}
}

func (m *MemoryRecorder) processed(ts int64) bool {
	for c := range m.claims {
		if c >= ts {
			return true
		}
	}
	for _, s := range m.indicators {
		if s.CandleTS.Unix() >= ts {
			return true
		}
	}
	for _, t := range m.trades {
		if t.CandleTS.Unix() >= ts {
			return true
		}
	}
	return false
}

func (m *MemoryRecorder) Claim(_ context.Context, candleTS time.Time, runID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed(candleTS.Unix()) {
		return false, nil
	}
	m.claims[candleTS.Unix()] = runID
	return true, nil
}

func (m *MemoryRecorder) HasProcessed(_ context.Context, candleTS time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed(candleTS.Unix()), nil
}

func (m *MemoryRecorder) RecordIndicator(_ context.Context, snap *IndicatorSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indicators = append(m.indicators, *snap)
	return nil
}

func (m *MemoryRecorder) RecordTrade(_ context.Context, rec *TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *rec
	r.ID = int64(len(m.trades) + 1)
	r.Time = time.Now().UTC()
	m.trades = append(m.trades, r)
	return nil
}

func (m *MemoryRecorder) RecentTrades(_ context.Context, limit int) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TradeRecord
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.trades[i])
	}
	return out, nil
}

// Indicators returns a copy of the recorded snapshots.
func (m *MemoryRecorder) Indicators() []IndicatorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IndicatorSnapshot(nil), m.indicators...)
}

func (m *MemoryRecorder) AppendPatternHistory(_ context.Context, e model.PatternHistoryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.patterns) + 1)
	m.patterns = append(m.patterns, e)
	return e.ID, nil
}

func (m *MemoryRecorder) LoadPatternHistory(context.Context) ([]model.PatternHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PatternHistoryEntry(nil), m.patterns...), nil
}

func (m *MemoryRecorder) SettlePatternHistory(_ context.Context, result float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := map[int64]bool{}
	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if !t.Execution.Executed {
			continue
		}
		if t.Decision.Action == model.ActionSell {
			break
		}
		if t.Decision.Action == model.ActionBuy && t.Decision.PatternEntry > 0 {
			open[t.Decision.PatternEntry] = true
		}
	}
	n := 0
	for i := range m.patterns {
		if p := &m.patterns[i]; open[p.ID] && !p.Settled {
			p.Result, p.Settled = result, true
			n++
		}
	}
	return n, nil
}

func (m *MemoryRecorder) LoadAccount(context.Context) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		m.account = &model.Account{Cash: m.initialCash}
	}
	return *m.account, nil
}

func (m *MemoryRecorder) SaveAccount(_ context.Context, a model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = &a
	return nil
}

func (m *MemoryRecorder) RecordReflection(_ context.Context, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.reflections) + 1)
	m.reflections = append(m.reflections, Reflection{ID: id, Time: time.Now().UTC(), Text: text})
	return id, nil
}

func (m *MemoryRecorder) LatestReflection(context.Context) (*Reflection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reflections) == 0 {
		return nil, nil
	}
	r := m.reflections[len(m.reflections)-1]
	return &r, nil
}

func (m *MemoryRecorder) Prune(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep > 0 && len(m.indicators) > keep {
		m.indicators = append([]IndicatorSnapshot(nil), m.indicators[len(m.indicators)-keep:]...)
	}
	if keep > 0 && len(m.trades) > keep {
		m.trades = append([]TradeRecord(nil), m.trades[len(m.trades)-keep:]...)
	}
	return nil
}

func (m *MemoryRecorder) Close() error { return nil }
