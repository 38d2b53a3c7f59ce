package calculator

import (
	"fmt"

	"TradeSentinel/internal/model"
)

// Windows are the lookback lengths for one timeframe.
type Windows struct {
	SMA        int `yaml:"sma"`
	EMAFast    int `yaml:"ema_fast"`
	EMASlow    int `yaml:"ema_slow"`
	RSI        int `yaml:"rsi"`
	ATR        int `yaml:"atr"`
	Volume     int `yaml:"volume"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

// Longest returns the number of rows needed before every series is defined.
func (w Windows) Longest() int {
	n := w.SMA
	for _, v := range []int{w.EMAFast, w.EMASlow, w.RSI + 1, w.ATR + 1, w.Volume, w.MACDSlow + w.MACDSignal - 1} {
		if v > n {
			n = v
		}
	}
	return n
}

// Frame is a candle window augmented with indicator columns. All series
// have the same length as Candles.
type Frame struct {
	Candles  []model.Candle
	SMA      []float64
	EMAFast  []float64
	EMASlow  []float64
	RSI      []float64
	ATR      []float64
	VolumeMA []float64
	MACDDiff []float64
}

// Compute builds a Frame from candles. Incomplete rows are dropped first; the
// caller's slice is never modified. Returns model.ErrInsufficientData when
// fewer rows remain than w.Longest().
func Compute(candles []model.Candle, w Windows) (*Frame, error) {
	rows := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Complete() {
			rows = append(rows, c)
		}
	}
	if need := w.Longest(); len(rows) < need {
		return nil, fmt.Errorf("%w: have %d complete rows, need %d", model.ErrInsufficientData, len(rows), need)
	}

	closes := extractCloses(rows)
	f := &Frame{Candles: rows}
	var err error
	if f.SMA, err = SMA(closes, w.SMA); err != nil {
		return nil, err
	}
	if f.EMAFast, err = EMA(closes, w.EMAFast); err != nil {
		return nil, err
	}
	if f.EMASlow, err = EMA(closes, w.EMASlow); err != nil {
		return nil, err
	}
	if f.RSI, err = RSI(closes, w.RSI); err != nil {
		return nil, err
	}
	if f.ATR, err = ATR(rows, w.ATR); err != nil {
		return nil, err
	}
	if f.VolumeMA, err = SMA(extractVolumes(rows), w.Volume); err != nil {
		return nil, err
	}
	if f.MACDDiff, err = MACDDiff(closes, w.MACDFast, w.MACDSlow, w.MACDSignal); err != nil {
		return nil, err
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Candles) }

// Last returns the most recent candle.
func (f *Frame) Last() model.Candle { return f.Candles[len(f.Candles)-1] }

// At returns the indicator values of row i.
func (f *Frame) At(i int) model.IndicatorSet {
	return model.IndicatorSet{
		Price:    f.Candles[i].Close,
		SMA:      f.SMA[i],
		EMAFast:  f.EMAFast[i],
		EMASlow:  f.EMASlow[i],
		RSI:      f.RSI[i],
		ATR:      f.ATR[i],
		VolumeMA: f.VolumeMA[i],
		MACDDiff: f.MACDDiff[i],
	}
}

// Latest returns the indicator values of the most recent row.
func (f *Frame) Latest() model.IndicatorSet { return f.At(f.Len() - 1) }

// Tail returns the last n candles, or all of them when fewer exist.
func (f *Frame) Tail(n int) []model.Candle {
	if n >= len(f.Candles) {
		return f.Candles
	}
	return f.Candles[len(f.Candles)-n:]
}
