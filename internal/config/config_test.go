package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/ai"
)

// cleanEnv blanks every override so the host environment cannot leak in.
func cleanEnv(t *testing.T) {
	for _, k := range []string{
		"UPBIT_MARKET", "TRADER_MODE", "HTTPS_PROXY", "EXCHANGE_GATEWAY_URL", "EXCHANGE_GATEWAY_TOKEN",
		"DISCORD_WEBHOOK_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "SQLITE_PATH", "REDIS_ADDR",
		"REDIS_PASSWORD", "LOG_LEVEL", "CRON_RUN", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "RUN_ON_START",
		"INITIAL_CASH",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cleanEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "KRW-BTC", cfg.Market)
	assert.Equal(t, ModePaper, cfg.Mode)
	assert.Equal(t, 200, cfg.Collector.Count)
	assert.Equal(t, 30, cfg.Indicators.Fine.SMA)
	assert.Equal(t, 16, cfg.Indicators.Fine.ATR)
	assert.Equal(t, 50, cfg.Indicators.Coarse.SMA)
	assert.Equal(t, 0.02, cfg.Noise.VolumeRatio)
	assert.Equal(t, 2.0, cfg.Strategy.VolumeSpike)
	assert.Equal(t, 0.06, cfg.Strategy.StopLoss)
	assert.Equal(t, 0.0005, cfg.Strategy.Fee)
	assert.Equal(t, 0.0005, cfg.Fund.Fee)
	assert.Equal(t, 5000.0, cfg.Fund.MinOrder)
	assert.Equal(t, 40.0, cfg.Gate.RSIOverride)
	assert.Equal(t, 2500.0, cfg.Gate.MACDThreshold)
	assert.Equal(t, 50, cfg.Gate.FearThreshold)
	assert.Equal(t, 70, cfg.Strategy.GreedThreshold)
	assert.Equal(t, 23*time.Hour, cfg.Sentiment.CacheTTL)
	assert.Equal(t, 11*time.Hour, cfg.AI.ReflectionInterval)
	assert.Equal(t, 3*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5000, cfg.Database.RetentionRows)
}

func TestYAMLAndEnv(t *testing.T) {
	cleanEnv(t)
	path := writeConfig(t, `
market: KRW-ETH
mode: live
exchange:
  gateway_url: http://gw:9000
indicators:
  fine:
    sma: 20
strategy:
  volume_spike: 2.5
fund:
  fee: 0.001
ai:
  provider: claude
  enabled: true
  timeout: 4s
`)
	t.Setenv("UPBIT_MARKET", "KRW-BTC")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("RUN_ON_START", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "KRW-BTC", cfg.Market)
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, 20, cfg.Indicators.Fine.SMA)
	assert.Equal(t, 26, cfg.Indicators.Fine.EMASlow)
	assert.Equal(t, 2.5, cfg.Strategy.VolumeSpike)
	assert.Equal(t, 0.001, cfg.Strategy.Fee)
	assert.Equal(t, ai.ProviderClaude, cfg.AI.Provider)
	assert.Equal(t, "sk-ant", cfg.AI.APIKey)
	assert.Equal(t, 4*time.Second, cfg.AI.Timeout)
	assert.True(t, cfg.Schedule.RunOnStart)
}

func TestBadEnvValue(t *testing.T) {
	cleanEnv(t)
	t.Setenv("RUN_ON_START", "maybe")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBadYAML(t *testing.T) {
	cleanEnv(t)
	_, err := Load(writeConfig(t, "market: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cleanEnv(t)
	cases := map[string]string{
		"unknown mode":     "mode: yolo",
		"live w/o gateway": "mode: live",
		"macd order":       "indicators:\n  fine:\n    macd_fast: 30",
		"fee mismatch":     "strategy:\n  fee: 0.001\nfund:\n  fee: 0.002",
		"ai without key":   "ai:\n  enabled: true",
		"bad fraction":     "fund:\n  max_trade_fraction: 1.5",
		"redis w/o addr":   "cache:\n  backend: redis",
		"count too small":  "collector:\n  count: 20",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}
