package model

// IndicatorSet holds the latest scalar indicator values of one timeframe.
type IndicatorSet struct {
	Price    float64 `json:"price"`
	SMA      float64 `json:"sma"`
	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	RSI      float64 `json:"rsi"`
	ATR      float64 `json:"atr"`
	VolumeMA float64 `json:"volume_ma"`
	MACDDiff float64 `json:"macd_diff"` // MACD line minus signal line
}
