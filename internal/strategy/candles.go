package strategy

import (
	"math"

	"TradeSentinel/internal/model"
)

// IsVolumeSpike reports whether volume is at least mean*threshold.
func IsVolumeSpike(volume, mean, threshold float64) bool {
	if mean <= 0 {
		return false
	}
	return volume >= mean*threshold
}

func shadows(c model.Candle) (body, upper, lower float64) {
	body = math.Abs(c.Close - c.Open)
	upper = c.High - math.Max(c.Open, c.Close)
	lower = math.Min(c.Open, c.Close) - c.Low
	return
}

// IsHammer: long lower shadow, short upper shadow.
func IsHammer(c model.Candle) bool {
	body, upper, lower := shadows(c)
	if body == 0 {
		return false
	}
	return lower >= 2*body && upper <= 0.3*body
}

// IsInvertedHammer: long upper shadow, short lower shadow.
func IsInvertedHammer(c model.Candle) bool {
	body, upper, lower := shadows(c)
	if body == 0 {
		return false
	}
	return upper >= 2*body && lower <= 0.3*body
}

// IsDoji reports whether the body is at most tolerance of the range.
func IsDoji(c model.Candle, tolerance float64) bool {
	rng := c.High - c.Low
	if rng == 0 {
		return false
	}
	return math.Abs(c.Close-c.Open)/rng <= tolerance
}

// IsDoubleBottom checks trough-rise-trough over w: the outer lows are above
// the middle low and the middle close rebounded by at least rebound.
func IsDoubleBottom(w []model.Candle, rebound float64) bool {
	if len(w) < 3 {
		return false
	}
	first, mid, last := w[0], w[len(w)/2], w[len(w)-1]
	return first.Low > mid.Low && mid.Low < last.Low && mid.Close > mid.Low*(1+rebound)
}

// IsDoubleTop checks peak-fall-peak over w.
func IsDoubleTop(w []model.Candle, drop float64) bool {
	if len(w) < 3 {
		return false
	}
	first, mid, last := w[0], w[len(w)/2], w[len(w)-1]
	return first.High < mid.High && mid.High > last.High && mid.Close < mid.High*(1-drop)
}
