package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/ai"
	"TradeSentinel/internal/api"
	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/exchange"
	"TradeSentinel/internal/filter"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/scheduler"
	"TradeSentinel/internal/sentiment"
	"TradeSentinel/internal/strategy"
	"TradeSentinel/internal/trader"
)

func main() {
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	cfgPath := flag.String("config", defaultCfg, "path to the YAML config")
	serve := flag.Bool("serve", false, "run on the cron schedule and serve the status API")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	setupLogging(cfg)
	log.Info().Str("market", cfg.Market).Str("mode", cfg.Mode).Bool("serve", *serve).Msg("TradeSentinel starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}
	defer a.close()

	if !*serve {
		// handled failures still exit 0 so a cron caller sees a clean run
		rep := a.trader.Run(ctx)
		log.Info().Str("outcome", string(rep.Outcome)).Str("reason", rep.Decision.Reason).Msg("TradeSentinel done")
		return
	}
	daemon(ctx, cfg, a)
}

type app struct {
	trader   *trader.Trader
	executor fund.Executor
	recorder recorder.Recorder
	telegram *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		store = r
	case "file":
		store = cache.NewFile(cfg.Cache.Path)
	default:
		store = cache.NewMemory()
	}

	rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, recorder.Options{
		BusyTimeout: cfg.Database.BusyTimeout,
		InitialCash: cfg.Fund.InitialCash,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, rec.Close)
	a.recorder = rec

	var fetcher collector.Fetcher
	if cfg.Collector.Mock {
		fetcher = &collector.MockFetcher{Price: cfg.Collector.MockPrice}
	} else {
		fetcher = collector.NewUpbitFetcher(cfg.Collector.BaseURL, cfg.Proxy, cfg.Collector.Timeout)
	}
	fetcher = &collector.CachedFetcher{Next: fetcher, Cache: store, TTL: cfg.Collector.CacheTTL}
	log.Info().Str("source", fetcher.Name()).Msg("candle source")
	col := collector.NewCollector(fetcher, cfg.Market, cfg.Collector.Count, !cfg.Collector.IncludeForming)

	var (
		classifier filter.Classifier
		patternAI  strategy.PatternAI
		reflector  trader.Reflector
	)
	if cfg.AI.Enabled {
		advisor := ai.NewAdvisor(ai.NewClient(cfg.AI.Config), store, cfg.AI.CacheTTL)
		if cfg.AI.NoiseCheck {
			classifier = advisor
		}
		if cfg.AI.PatternCheck {
			patternAI = advisor
		}
		reflector = advisor
		log.Info().Str("provider", string(cfg.AI.Provider)).Str("model", cfg.AI.Model).Msg("AI advisor enabled")
	}

	switch cfg.Mode {
	case config.ModeLive:
		gw := exchange.NewGateway(cfg.Exchange.GatewayURL, cfg.Exchange.Token, cfg.Market, cfg.Proxy, cfg.Exchange.Timeout)
		a.executor = fund.NewLive(cfg.Fund, gw)
	default:
		a.executor = fund.NewPaper(cfg.Fund, rec)
	}

	fg := sentiment.NewFearGreed(store, cfg.Sentiment.CacheTTL)
	if cfg.Sentiment.URL != "" {
		fg.URL = cfg.Sentiment.URL
	}

	var channels notifier.Multi
	if cfg.Notify.DiscordWebhook != "" {
		channels = append(channels, notifier.WithRetry(notifier.NewDiscordNotifier(cfg.Notify.DiscordWebhook), cfg.Notify.Retries))
	}
	if cfg.Notify.Telegram.BotToken != "" && cfg.Notify.Telegram.ChatID != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, cfg.Proxy)
		channels = append(channels, notifier.WithRetry(a.telegram, cfg.Notify.Retries))
	}
	var notify notifier.Notifier = notifier.Nop{}
	if len(channels) > 0 {
		notify = channels
	}

	a.trader = trader.New(trader.Config{
		Fine:               cfg.Indicators.Fine,
		Coarse:             cfg.Indicators.Coarse,
		Fund:               cfg.Fund,
		RetentionRows:      cfg.Database.RetentionRows,
		ReflectionInterval: cfg.AI.ReflectionInterval,
		ReflectionTrades:   cfg.AI.ReflectionTrades,
		Attempts:           cfg.Run.Attempts,
		RetryWait:          cfg.Run.RetryWait,
	}, trader.Deps{
		Candles:   col,
		Noise:     filter.NewNoiseFilter(cfg.Noise, classifier),
		Engine:    strategy.NewEngine(cfg.Strategy, strategy.NewGate(cfg.Gate), patternAI, rec),
		Executor:  a.executor,
		Recorder:  rec,
		Sentiment: fg,
		Reflector: reflector,
		Notifier:  notify,
	})
	return a, nil
}

func daemon(ctx context.Context, cfg *config.Config, a *app) {
	sched := scheduler.NewScheduler(ctx, a.trader)
	if err := sched.Register(cfg.Schedule.RunCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()

	srv := api.NewServer(cfg.API.Addr, a.trader, a.executor, a.recorder, cfg.Market)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("status API stopped")
		}
	}()

	if a.telegram != nil && cfg.Notify.Telegram.Commands {
		go a.telegram.StartPolling(ctx, a.trader.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, running now")
		go sched.RunNow()
	}

	log.Info().Str("cron", cfg.Schedule.RunCron).Msg("TradeSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status API shutdown")
	}
	sched.Stop()
	log.Info().Msg("TradeSentinel stopped")
}
