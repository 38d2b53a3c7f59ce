package model

import (
	"math"
	"time"
)

// Candle represents a single OHLCV bar. Time is the bar's open time.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Complete reports whether every numeric field is a finite number.
func (c Candle) Complete() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !c.Time.IsZero()
}

// Timeframe is a candle period in minutes.
type Timeframe int

const (
	Fine   Timeframe = 15
	Coarse Timeframe = 60
)

// Duration returns the candle period.
func (t Timeframe) Duration() time.Duration { return time.Duration(t) * time.Minute }

// Boundary floors ts to the start of its candle period.
func (t Timeframe) Boundary(ts time.Time) time.Time {
	return ts.UTC().Truncate(t.Duration())
}
