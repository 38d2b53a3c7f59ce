package model

import "time"

// Action is the direction of a decision.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction maps free text to an action, defaulting to hold.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionBuy, ActionSell:
		return Action(s)
	}
	return ActionHold
}

// Pattern and reason labels written to the decision log.
const (
	PatternDoubleBottom   = "double bottom"
	PatternDoubleTop      = "double top"
	PatternHammer         = "hammer"
	PatternInvertedHammer = "inverted hammer"
	PatternDoji           = "doji"

	ReasonStopLoss        = "stop_loss"
	ReasonTakeProfit      = "take_profit"
	ReasonTrendSell       = "trend_sell"
	ReasonTrendVeto       = "trend_filter_veto"
	ReasonNoSignal        = "no_signal"
	ReasonNoise           = "noise"
	ReasonAlreadyDone     = "already_processed"
	ReasonInsufficient    = "insufficient_data"
	ReasonBelowMinimum    = "below_min_order"
	ReasonNoPosition      = "no_position"
	ReasonOrderFailed     = "order_failed"
	ReasonVolumeSMA       = "volume+SMA"
	ReasonPriceBelowSMA   = "price<SMA"
	ReasonGoldenCross     = "EMA_GC"
	ReasonDeadCross       = "EMA_DC"
	ReasonAIPatternPrefix = "ai:"
)

// KnownPatterns are detected by rules; AI detections with these labels are ignored.
var KnownPatterns = map[string]bool{
	PatternDoubleBottom:   true,
	PatternDoubleTop:      true,
	PatternHammer:         true,
	PatternInvertedHammer: true,
	PatternDoji:           true,
}

// Decision is the single action taken by one run.
type Decision struct {
	Action       Action `json:"action"`
	Pattern      string `json:"pattern"`
	Reason       string `json:"reason"` // machine-readable label
	Detail       string `json:"detail,omitempty"`
	PatternEntry int64  `json:"pattern_entry,omitempty"` // pattern history id behind an AI-pattern decision
}

// Hold returns a hold decision with the given reason.
func Hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

// Outcome is the terminal state of one run.
type Outcome string

const (
	OutcomeExecuted         Outcome = "executed_trade"
	OutcomeSkippedHold      Outcome = "skipped_hold"
	OutcomeFilteredNoise    Outcome = "filtered_noise"
	OutcomeVetoedByTrend    Outcome = "vetoed_by_trend"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeFailed           Outcome = "failed"
)

// Execution is the result of sizing and placing an order.
type Execution struct {
	Executed bool    `json:"executed"`
	Notional float64 `json:"notional"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"` // share of equity, percent
	Reason   string  `json:"reason,omitempty"`
	Unsynced bool    `json:"unsynced,omitempty"` // balances are projected, the exchange read failed
}

// RunReport summarizes one run for logs, notifications and the status API.
type RunReport struct {
	RunID     string       `json:"run_id"`
	CandleTS  time.Time    `json:"candle_ts"`
	Outcome   Outcome      `json:"outcome"`
	Decision  Decision     `json:"decision"`
	Execution Execution    `json:"execution"`
	Account   Account      `json:"account"`
	Fine      IndicatorSet `json:"fine"`
	Sentiment int          `json:"sentiment"`
	Mode      string       `json:"mode"`
	Err       string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}
