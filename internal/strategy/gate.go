package strategy

import (
	"math"

	"TradeSentinel/internal/model"
)

// GateConfig holds the higher-timeframe override thresholds.
type GateConfig struct {
	RSIOverride   float64 `yaml:"rsi_override"`   // coarse RSI at or below this lets entries through
	MACDThreshold float64 `yaml:"macd_threshold"` // |coarse MACD diff| at or below this lets entries through
	FearThreshold int     `yaml:"fear_threshold"` // sentiment at or below this lets entries through
}

// GateResult explains a gate check.
type GateResult struct {
	Pass   bool
	Reason string
}

// Gate vetoes entries while price trades under the coarse baseline.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a Gate.
func NewGate(cfg GateConfig) *Gate { return &Gate{cfg: cfg} }

// Check evaluates the gate. coarse may be nil when the coarse timeframe
// could not be fetched; the gate then passes.
func (g *Gate) Check(price float64, coarse *model.IndicatorSet, sentiment int) GateResult {
	switch {
	case coarse == nil:
		return GateResult{Pass: true, Reason: "coarse_unavailable"}
	case price >= coarse.SMA:
		return GateResult{Pass: true, Reason: "above_baseline"}
	case coarse.RSI <= g.cfg.RSIOverride:
		return GateResult{Pass: true, Reason: "rsi_override"}
	case math.Abs(coarse.MACDDiff) <= g.cfg.MACDThreshold:
		return GateResult{Pass: true, Reason: "macd_override"}
	case sentiment <= g.cfg.FearThreshold:
		return GateResult{Pass: true, Reason: "fear_override"}
	}
	return GateResult{Pass: false, Reason: model.ReasonTrendVeto}
}
