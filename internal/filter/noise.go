// Package filter suppresses decisions on degenerate or glitched candles.
package filter

import (
	"context"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Window is the number of most recent candles inspected.
const Window = 5

// Classifier answers whether the latest candle of a window is noise.
type Classifier interface {
	IsNoise(ctx context.Context, candles []model.Candle) (bool, error)
}

// Config holds the noise thresholds.
type Config struct {
	VolumeRatio   float64 `yaml:"volume_ratio"`    // rule stage: last volume <= ratio * prior mean
	RangeRatio    float64 `yaml:"range_ratio"`     // rule stage: (high-low) > ratio * close
	AIVolumeRatio float64 `yaml:"ai_volume_ratio"` // AI stage is consulted at or below this ratio
}

// Verdict is the result of a noise check.
type Verdict struct {
	Noise  bool
	Stage  string // "rule", "ai" or ""
	Reason string
}

// NoiseFilter runs the rule stage and, for soft anomalies, the AI stage.
type NoiseFilter struct {
	cfg Config
	ai  Classifier
}

// NewNoiseFilter creates a filter. ai may be nil to disable the AI stage.
func NewNoiseFilter(cfg Config, ai Classifier) *NoiseFilter {
	return &NoiseFilter{cfg: cfg, ai: ai}
}

// Check inspects the last Window candles.
func (f *NoiseFilter) Check(ctx context.Context, candles []model.Candle) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("noise filter failed, treating candle as clean")
			v = Verdict{}
		}
	}()

	if len(candles) < Window {
		log.Warn().Int("candles", len(candles)).Msg("noise filter skipped: window too short")
		return Verdict{}
	}
	win := candles[len(candles)-Window:]
	last := win[Window-1]

	if !last.Complete() {
		return Verdict{Noise: true, Stage: "rule", Reason: "missing_field"}
	}

	var avg float64
	for _, c := range win[:Window-1] {
		avg += c.Volume
	}
	avg /= float64(Window - 1)

	if avg > 0 && last.Volume <= avg*f.cfg.VolumeRatio {
		return Verdict{Noise: true, Stage: "rule", Reason: "volume_drop"}
	}
	if f.cfg.RangeRatio > 0 && last.High-last.Low > f.cfg.RangeRatio*last.Close {
		return Verdict{Noise: true, Stage: "rule", Reason: "range_spike"}
	}

	if f.ai == nil || avg <= 0 || last.Volume > avg*f.cfg.AIVolumeRatio {
		return Verdict{}
	}
	noise, err := f.ai.IsNoise(ctx, win)
	if err != nil {
		log.Warn().Err(err).Msg("ai noise check unavailable, treating candle as clean")
		return Verdict{}
	}
	if noise {
		return Verdict{Noise: true, Stage: "ai", Reason: "ai_noise"}
	}
	return Verdict{}
}
