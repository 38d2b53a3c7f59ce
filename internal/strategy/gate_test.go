package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TradeSentinel/internal/model"
)

func TestGate(t *testing.T) {
	g := NewGate(GateConfig{RSIOverride: 40, MACDThreshold: 2500, FearThreshold: 50})

	tests := []struct {
		name      string
		price     float64
		coarse    *model.IndicatorSet
		sentiment int
		pass      bool
		reason    string
	}{
		{"no coarse data", 100, nil, 80, true, "coarse_unavailable"},
		{"above baseline", 100, &model.IndicatorSet{SMA: 90, RSI: 60, MACDDiff: -9000}, 80, true, "above_baseline"},
		{"equal baseline", 90, &model.IndicatorSet{SMA: 90, RSI: 60, MACDDiff: -9000}, 80, true, "above_baseline"},
		{"rsi override", 80, &model.IndicatorSet{SMA: 90, RSI: 40, MACDDiff: -9000}, 80, true, "rsi_override"},
		{"macd override", 80, &model.IndicatorSet{SMA: 90, RSI: 60, MACDDiff: -2500}, 80, true, "macd_override"},
		{"fear override", 80, &model.IndicatorSet{SMA: 90, RSI: 60, MACDDiff: 9000}, 50, true, "fear_override"},
		{"veto", 80, &model.IndicatorSet{SMA: 90, RSI: 41, MACDDiff: 2501}, 51, false, model.ReasonTrendVeto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Check(tt.price, tt.coarse, tt.sentiment)
			assert.Equal(t, tt.pass, got.Pass)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}
