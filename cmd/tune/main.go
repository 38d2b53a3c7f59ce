package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/config"
	"TradeSentinel/internal/tuning"
)

func main() {
	csvPath := flag.String("csv", "data/krw_btc_15m.csv", "historical candles (datetime,open,high,low,close,volume)")
	outPath := flag.String("out", "data/tuning_results.csv", "where to write every grid result")
	bestPath := flag.String("best", "data/best_params.json", "where to write the best parameter set")
	cfgPath := flag.String("config", "configs/config.yaml", "config providing the fixed windows and exit bands")
	cash := flag.Float64("cash", 1_000_000, "initial simulated cash")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open candles")
	}
	candles, err := tuning.LoadCSV(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("parse candles")
	}
	log.Info().Int("candles", len(candles)).Str("file", *csvPath).Msg("loaded history")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := tuning.Search(ctx, candles, tuning.DefaultGrid, tuning.Options{
		InitialCash: *cash,
		TakeProfit:  cfg.Strategy.TakeProfit,
		StopLoss:    cfg.Strategy.StopLoss,
		Fee:         cfg.Strategy.Fee,
		Base:        cfg.Indicators.Fine,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("grid search")
	}

	for i, r := range results {
		if i == 10 {
			break
		}
		log.Info().
			Int("rank", i+1).
			Int("sma", r.SMA).
			Int("atr", r.ATR).
			Float64("volume", r.VolumeSpike).
			Int("trades", r.TotalTrades).
			Float64("win_rate", r.WinRate).
			Float64("return_pct", r.TotalReturnPct).
			Msg("result")
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("create results file")
	}
	if err := tuning.WriteCSV(out, results); err != nil {
		out.Close()
		log.Fatal().Err(err).Msg("write results")
	}
	if err := out.Close(); err != nil {
		log.Fatal().Err(err).Msg("close results file")
	}

	best, err := json.MarshalIndent(results[0], "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode best params")
	}
	if err := os.WriteFile(*bestPath, best, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write best params")
	}
	log.Info().Str("results", *outPath).Str("best", *bestPath).Msg("tuning done")
}
