package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/ai"
	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/filter"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/strategy"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config holds all application configuration.
type Config struct {
	Market string `yaml:"market"`
	Mode   string `yaml:"mode"`
	Proxy  string `yaml:"proxy"`

	Collector struct {
		BaseURL        string        `yaml:"base_url"`
		Count          int           `yaml:"count"`
		IncludeForming bool          `yaml:"include_forming"`
		Timeout        time.Duration `yaml:"timeout"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		Mock           bool          `yaml:"mock"`
		MockPrice      float64       `yaml:"mock_price"`
	} `yaml:"collector"`

	Indicators struct {
		Fine   calculator.Windows `yaml:"fine"`
		Coarse calculator.Windows `yaml:"coarse"`
	} `yaml:"indicators"`

	Noise    filter.Config       `yaml:"noise"`
	Strategy strategy.Config     `yaml:"strategy"`
	Gate     strategy.GateConfig `yaml:"gate"`
	Fund     fund.Config         `yaml:"fund"`

	Sentiment struct {
		URL      string        `yaml:"url"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"sentiment"`

	AI struct {
		ai.Config          `yaml:",inline"`
		Enabled            bool          `yaml:"enabled"`
		NoiseCheck         bool          `yaml:"noise_check"`
		PatternCheck       bool          `yaml:"pattern_check"`
		CacheTTL           time.Duration `yaml:"cache_ttl"`
		ReflectionInterval time.Duration `yaml:"reflection_interval"`
		ReflectionTrades   int           `yaml:"reflection_trades"`
	} `yaml:"ai"`

	Exchange struct {
		GatewayURL string        `yaml:"gateway_url"`
		Token      string        `yaml:"token"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"exchange"`

	Notify struct {
		DiscordWebhook string `yaml:"discord_webhook"`
		Telegram       struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
			Commands bool   `yaml:"commands"`
		} `yaml:"telegram"`
		Retries uint64 `yaml:"retries"`
	} `yaml:"notify"`

	Database struct {
		SQLitePath    string        `yaml:"sqlite_path"`
		BusyTimeout   time.Duration `yaml:"busy_timeout"`
		RetentionRows int           `yaml:"retention_rows"`
	} `yaml:"database"`

	Cache struct {
		Backend string `yaml:"backend"` // memory, file or redis
		Path    string `yaml:"path"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Run struct {
		Attempts  int           `yaml:"attempts"`
		RetryWait time.Duration `yaml:"retry_wait"`
	} `yaml:"run"`

	Schedule struct {
		RunCron    string `yaml:"run_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`

	API struct {
		Addr string `yaml:"addr"`
	} `yaml:"api"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`
}

// Load reads .env if present, then the YAML file, then applies environment
// variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"UPBIT_MARKET":           &c.Market,
		"TRADER_MODE":            &c.Mode,
		"HTTPS_PROXY":            &c.Proxy,
		"EXCHANGE_GATEWAY_URL":   &c.Exchange.GatewayURL,
		"EXCHANGE_GATEWAY_TOKEN": &c.Exchange.Token,
		"DISCORD_WEBHOOK_URL":    &c.Notify.DiscordWebhook,
		"TELEGRAM_BOT_TOKEN":     &c.Notify.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":       &c.Notify.Telegram.ChatID,
		"SQLITE_PATH":            &c.Database.SQLitePath,
		"REDIS_ADDR":             &c.Cache.Redis.Addr,
		"REDIS_PASSWORD":         &c.Cache.Redis.Password,
		"LOG_LEVEL":              &c.Log.Level,
		"CRON_RUN":               &c.Schedule.RunCron,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// the key follows the configured provider
	keyVar := "OPENAI_API_KEY"
	if c.AI.Provider == ai.ProviderClaude {
		keyVar = "ANTHROPIC_API_KEY"
	}
	if v := os.Getenv(keyVar); v != "" {
		c.AI.APIKey = v
	}

	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Schedule.RunOnStart = b
	}
	if v := os.Getenv("INITIAL_CASH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INITIAL_CASH: %w", err)
		}
		c.Fund.InitialCash = f
	}
	return nil
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

func setDur(p *time.Duration, v time.Duration) {
	if *p == 0 {
		*p = v
	}
}

func setStr(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func (c *Config) applyDefaults() {
	setStr(&c.Market, "KRW-BTC")
	setStr(&c.Mode, ModePaper)

	setStr(&c.Collector.BaseURL, "https://api.upbit.com")
	setInt(&c.Collector.Count, 200)
	setDur(&c.Collector.Timeout, 5*time.Second)
	setDur(&c.Collector.CacheTTL, time.Minute)
	setFloat(&c.Collector.MockPrice, 95_000_000)

	fine := &c.Indicators.Fine
	setInt(&fine.SMA, 30)
	setInt(&fine.EMAFast, 12)
	setInt(&fine.EMASlow, 26)
	setInt(&fine.RSI, 14)
	setInt(&fine.ATR, 16)
	setInt(&fine.Volume, 20)
	setInt(&fine.MACDFast, 12)
	setInt(&fine.MACDSlow, 26)
	setInt(&fine.MACDSignal, 9)
	coarse := &c.Indicators.Coarse
	setInt(&coarse.SMA, 50)
	setInt(&coarse.EMAFast, 12)
	setInt(&coarse.EMASlow, 26)
	setInt(&coarse.RSI, 14)
	setInt(&coarse.ATR, 16)
	setInt(&coarse.Volume, 20)
	setInt(&coarse.MACDFast, 12)
	setInt(&coarse.MACDSlow, 26)
	setInt(&coarse.MACDSignal, 9)

	setFloat(&c.Noise.VolumeRatio, 0.02)
	setFloat(&c.Noise.RangeRatio, 0.10)
	setFloat(&c.Noise.AIVolumeRatio, 0.10)

	s := &c.Strategy
	setInt(&s.Lookback, 3)
	setFloat(&s.ReboundPct, 0.01)
	setFloat(&s.DropPct, 0.01)
	setFloat(&s.DojiTolerance, 0.001)
	setFloat(&s.VolumeSpike, 2.0)
	setFloat(&s.StopLoss, 0.06)
	setFloat(&s.TakeProfit, 0.05)
	setInt(&s.GreedThreshold, 70)
	setInt(&s.AIMinCandles, 100)

	setFloat(&c.Gate.RSIOverride, 40)
	setFloat(&c.Gate.MACDThreshold, 2500)
	setInt(&c.Gate.FearThreshold, 50)

	f := &c.Fund
	setFloat(&f.MinOrder, 5000)
	setFloat(&f.RiskFraction, 0.01)
	setFloat(&f.MaxTradeFraction, 0.05)
	setFloat(&f.InitialCash, 30000)
	// one fee applies to both the exit bands and the fills
	setFloat(&s.Fee, f.Fee)
	setFloat(&f.Fee, s.Fee)
	setFloat(&s.Fee, 0.0005)
	setFloat(&f.Fee, 0.0005)

	setDur(&c.Sentiment.CacheTTL, 23*time.Hour)

	setStr((*string)(&c.AI.Provider), string(ai.ProviderOpenAI))
	if c.AI.Model == "" {
		if c.AI.Provider == ai.ProviderClaude {
			c.AI.Model = "claude-3-5-haiku-latest"
		} else {
			c.AI.Model = "gpt-4o-mini"
		}
	}
	setInt(&c.AI.MaxTokens, 512)
	setDur(&c.AI.Timeout, 8*time.Second)
	setDur(&c.AI.CacheTTL, time.Hour)
	setDur(&c.AI.ReflectionInterval, 11*time.Hour)
	setInt(&c.AI.ReflectionTrades, 20)

	setDur(&c.Exchange.Timeout, 5*time.Second)

	if c.Notify.Retries == 0 {
		c.Notify.Retries = 3
	}

	setStr(&c.Database.SQLitePath, "data/trade_sentinel.db")
	setDur(&c.Database.BusyTimeout, 3*time.Second)
	setInt(&c.Database.RetentionRows, 5000)

	setStr(&c.Cache.Backend, "file")
	setStr(&c.Cache.Path, "data/cache.json")
	setStr(&c.Cache.Redis.Prefix, "tradesentinel:")

	setInt(&c.Run.Attempts, 3)
	setDur(&c.Run.RetryWait, time.Second)

	setStr(&c.Schedule.RunCron, "10 */15 * * * *")
	setStr(&c.API.Addr, ":8080")

	setStr(&c.Log.Level, "info")
	setStr(&c.Log.Format, "console")
}

func checkWindows(name string, w calculator.Windows) error {
	for field, v := range map[string]int{
		"sma": w.SMA, "ema_fast": w.EMAFast, "ema_slow": w.EMASlow, "rsi": w.RSI, "atr": w.ATR,
		"volume": w.Volume, "macd_fast": w.MACDFast, "macd_slow": w.MACDSlow, "macd_signal": w.MACDSignal,
	} {
		if v < 1 {
			return fmt.Errorf("indicators.%s.%s must be positive", name, field)
		}
	}
	if w.MACDSlow <= w.MACDFast {
		return fmt.Errorf("indicators.%s.macd_slow must exceed macd_fast", name)
	}
	if w.EMASlow <= w.EMAFast {
		return fmt.Errorf("indicators.%s.ema_slow must exceed ema_fast", name)
	}
	return nil
}

func fraction(name string, v float64) error {
	if v <= 0 || v >= 1 {
		return fmt.Errorf("%s must be in (0, 1), got %v", name, v)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePaper:
	case ModeLive:
		if c.Exchange.GatewayURL == "" {
			return fmt.Errorf("exchange.gateway_url is required in live mode")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if c.Collector.Count < 1 || c.Collector.Count > 200 {
		return fmt.Errorf("collector.count must be in [1, 200]")
	}
	if err := checkWindows("fine", c.Indicators.Fine); err != nil {
		return err
	}
	if err := checkWindows("coarse", c.Indicators.Coarse); err != nil {
		return err
	}
	if need := c.Indicators.Fine.Longest(); c.Collector.Count < need {
		return fmt.Errorf("collector.count %d is below the longest fine window %d", c.Collector.Count, need)
	}
	for name, v := range map[string]float64{
		"noise.volume_ratio":      c.Noise.VolumeRatio,
		"noise.range_ratio":       c.Noise.RangeRatio,
		"noise.ai_volume_ratio":   c.Noise.AIVolumeRatio,
		"strategy.stop_loss":      c.Strategy.StopLoss,
		"strategy.take_profit":    c.Strategy.TakeProfit,
		"fund.risk_fraction":      c.Fund.RiskFraction,
		"fund.max_trade_fraction": c.Fund.MaxTradeFraction,
		"fund.fee":                c.Fund.Fee,
	} {
		if err := fraction(name, v); err != nil {
			return err
		}
	}
	if c.Noise.AIVolumeRatio < c.Noise.VolumeRatio {
		return fmt.Errorf("noise.ai_volume_ratio must not be below noise.volume_ratio")
	}
	if c.Strategy.Fee != c.Fund.Fee {
		return fmt.Errorf("strategy.fee (%v) and fund.fee (%v) must match", c.Strategy.Fee, c.Fund.Fee)
	}
	if c.Strategy.Lookback < 3 {
		return fmt.Errorf("strategy.lookback must be at least 3")
	}
	if c.Fund.MinOrder <= 0 {
		return fmt.Errorf("fund.min_order must be positive")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.enabled")
	}
	if c.Notify.Telegram.Commands && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram.bot_token and chat_id are required for commands")
	}
	switch c.Cache.Backend {
	case "memory", "file":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, file or redis")
	}
	return nil
}
