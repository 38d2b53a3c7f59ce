// Package recorder persists run history and guards against processing a
// candle twice.
package recorder

import (
	"context"
	"time"

	"TradeSentinel/internal/model"
)

// IndicatorSnapshot is the latest indicator values seen by one run.
type IndicatorSnapshot struct {
	CandleTS  time.Time
	RunID     string
	Fine      model.IndicatorSet
	Coarse    *model.IndicatorSet
	Sentiment int
}

// TradeRecord is the decision taken by one run and its result.
type TradeRecord struct {
	ID           int64           `json:"id"`
	Time         time.Time       `json:"time"`
	CandleTS     time.Time       `json:"candle_ts"`
	RunID        string          `json:"run_id"`
	Decision     model.Decision  `json:"decision"`
	Outcome      model.Outcome   `json:"outcome"`
	Execution    model.Execution `json:"execution"`
	Account      model.Account   `json:"account"` // after execution
	Price        float64         `json:"price"`
	Mode         string          `json:"mode"`
	ReflectionID int64           `json:"reflection_id,omitempty"`
}

// Reflection is a periodic AI review of recent trades.
type Reflection struct {
	ID   int64     `json:"id"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Recorder persists everything a run reads back later.
type Recorder interface {
	// Claim atomically checks that no record at or after candleTS exists and
	// marks candleTS as taken. It returns false if the candle was already
	// claimed or recorded.
	Claim(ctx context.Context, candleTS time.Time, runID string) (bool, error)
	// HasProcessed is a read-only Claim pre-check; it takes no lock.
	HasProcessed(ctx context.Context, candleTS time.Time) (bool, error)

	RecordIndicator(ctx context.Context, snap *IndicatorSnapshot) error
	RecordTrade(ctx context.Context, rec *TradeRecord) error
	RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)

	// AppendPatternHistory stores e and returns its id.
	AppendPatternHistory(ctx context.Context, e model.PatternHistoryEntry) (int64, error)
	LoadPatternHistory(ctx context.Context) ([]model.PatternHistoryEntry, error)
	// SettlePatternHistory writes result into the unsettled entries linked
	// to the executed buys since the last executed sell, i.e. the buys that
	// built the position being closed. It returns how many were settled.
	SettlePatternHistory(ctx context.Context, result float64) (int, error)

	LoadAccount(ctx context.Context) (model.Account, error)
	SaveAccount(ctx context.Context, a model.Account) error

	RecordReflection(ctx context.Context, text string) (int64, error)
	LatestReflection(ctx context.Context) (*Reflection, error)

	// Prune keeps the newest keep rows of each log table.
	Prune(ctx context.Context, keep int) error
	Close() error
}
