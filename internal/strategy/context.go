package strategy

import (
	"time"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// Context is the read-only input of one decision run.
type Context struct {
	CandleTS  time.Time         // period floor of the latest fine candle
	Fine      *calculator.Frame // fine timeframe, never nil
	Coarse    *calculator.Frame // coarse timeframe, nil when unavailable
	Account   model.Account     // already dust-normalized
	Sentiment int
}

// Price is the close of the latest fine candle.
func (c *Context) Price() float64 { return c.Fine.Last().Close }

// Status classifies a stage result.
type Status int

const (
	NoSignal Status = iota
	Signal
	Insufficient
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Signal:
		return "signal"
	case Insufficient:
		return "insufficient"
	case Unavailable:
		return "unavailable"
	}
	return "no_signal"
}

// Result is the outcome of one cascade stage.
type Result struct {
	Stage    string
	Status   Status
	Decision model.Decision
	Err      error
}

func signal(stage string, d model.Decision) Result {
	return Result{Stage: stage, Status: Signal, Decision: d}
}

func none(stage string) Result { return Result{Stage: stage, Status: NoSignal} }

func insufficient(stage string) Result { return Result{Stage: stage, Status: Insufficient} }
