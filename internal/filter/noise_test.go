package filter

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"TradeSentinel/internal/model"
)

type stubClassifier struct {
	calls int
	noise bool
	err   error
}

func (s *stubClassifier) IsNoise(context.Context, []model.Candle) (bool, error) {
	s.calls++
	return s.noise, s.err
}

var testConfig = Config{VolumeRatio: 0.02, RangeRatio: 0.10, AIVolumeRatio: 0.10}

func window(lastVolume float64) []model.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, Window)
	for i := range out {
		out[i] = model.Candle{
			Time: start.Add(time.Duration(i) * 15 * time.Minute),
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 100,
		}
	}
	out[Window-1].Volume = lastVolume
	return out
}

func TestRuleStageCatchesVolumeCollapseWithoutAI(t *testing.T) {
	ai := &stubClassifier{}
	v := NewNoiseFilter(testConfig, ai).Check(context.Background(), window(1))

	assert.True(t, v.Noise)
	assert.Equal(t, "rule", v.Stage)
	assert.Equal(t, "volume_drop", v.Reason)
	assert.Zero(t, ai.calls)
}

func TestRuleStageMissingField(t *testing.T) {
	w := window(100)
	w[Window-1].High = math.NaN()
	v := NewNoiseFilter(testConfig, nil).Check(context.Background(), w)
	assert.True(t, v.Noise)
	assert.Equal(t, "missing_field", v.Reason)
}

func TestRuleStageRangeSpike(t *testing.T) {
	w := window(100)
	w[Window-1].High = 120
	w[Window-1].Low = 95
	v := NewNoiseFilter(testConfig, nil).Check(context.Background(), w)
	assert.True(t, v.Noise)
	assert.Equal(t, "range_spike", v.Reason)
}

func TestAIStageOnlyForSoftAnomalies(t *testing.T) {
	ai := &stubClassifier{noise: true}
	f := NewNoiseFilter(testConfig, ai)

	v := f.Check(context.Background(), window(50))
	assert.False(t, v.Noise)
	assert.Zero(t, ai.calls)

	v = f.Check(context.Background(), window(8))
	assert.True(t, v.Noise)
	assert.Equal(t, "ai", v.Stage)
	assert.Equal(t, 1, ai.calls)
}

func TestAIStageFailsOpen(t *testing.T) {
	ai := &stubClassifier{noise: true, err: errors.New("timeout")}
	v := NewNoiseFilter(testConfig, ai).Check(context.Background(), window(8))
	assert.False(t, v.Noise)
	assert.Equal(t, 1, ai.calls)
}

func TestShortWindowIsNotNoise(t *testing.T) {
	v := NewNoiseFilter(testConfig, nil).Check(context.Background(), window(1)[:3])
	assert.False(t, v.Noise)
}
