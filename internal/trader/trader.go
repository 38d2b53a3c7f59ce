// Package trader drives one decision run per completed candle.
package trader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/filter"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/strategy"
)

// Candles supplies recent candles per timeframe.
type Candles interface {
	Recent(ctx context.Context, tf model.Timeframe) ([]model.Candle, error)
}

// Sentiment returns the fear/greed score, or the last known value with an
// error when the source is down.
type Sentiment interface {
	Score(ctx context.Context) (int, error)
}

// Reflector reviews recent trades.
type Reflector interface {
	Reflect(ctx context.Context, trades []recorder.TradeRecord) (string, error)
}

// Config holds the run-level settings.
type Config struct {
	Fine               calculator.Windows
	Coarse             calculator.Windows
	Fund               fund.Config
	RetentionRows      int
	ReflectionInterval time.Duration
	ReflectionTrades   int
	Attempts           int
	RetryWait          time.Duration
}

// Deps are the collaborators of a Trader. Reflector and Notifier may be nil.
type Deps struct {
	Candles   Candles
	Noise     *filter.NoiseFilter
	Engine    *strategy.Engine
	Executor  fund.Executor
	Recorder  recorder.Recorder
	Sentiment Sentiment
	Reflector Reflector
	Notifier  notifier.Notifier
}

// Trader runs the pipeline. Run is safe to call from several goroutines;
// the recorder's claim keeps them from acting on the same candle.
type Trader struct {
	cfg Config
	Deps
	now func() time.Time

	mu   sync.RWMutex
	last *model.RunReport
}

// New creates a Trader.
func New(cfg Config, deps Deps) *Trader {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}
	return &Trader{cfg: cfg, Deps: deps, now: time.Now}
}

// LastReport returns the most recent run report, or nil before the first run.
func (t *Trader) LastReport() *model.RunReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return nil
	}
	r := *t.last
	return &r
}

// Run performs one run and returns its terminal outcome. Transient
// failures before the candle is claimed are retried; anything else ends
// the run as failed. Run never panics.
func (t *Trader) Run(ctx context.Context) model.RunReport {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("mode", t.Executor.Mode()).Logger()
	ctx = logger.WithContext(ctx)

	var rep model.RunReport
	attempt := 0
	op := func() (err error) {
		attempt++
		rep = model.RunReport{RunID: runID, Mode: t.Executor.Mode(), At: t.now()}
		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("run panicked")
				err = backoff.Permanent(fmt.Errorf("panic: %v", p))
			}
		}()
		err = t.attempt(ctx, &rep)
		if err != nil && !errors.Is(err, model.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.cfg.RetryWait), uint64(t.cfg.Attempts-1)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("transient failure, retrying")
	})
	if err != nil {
		rep.Outcome = model.OutcomeFailed
		rep.Err = err.Error()
		logger.Error().Err(err).Int("attempts", attempt).Msg("run failed")
	}

	t.finish(ctx, &rep)
	return rep
}

func (t *Trader) attempt(ctx context.Context, rep *model.RunReport) error {
	logger := zerolog.Ctx(ctx)

	if t.cfg.RetentionRows > 0 {
		if err := t.Recorder.Prune(ctx, t.cfg.RetentionRows); err != nil {
			logger.Warn().Err(err).Msg("log retention prune failed")
		}
	}

	fine, err := t.Candles.Recent(ctx, model.Fine)
	if errors.Is(err, model.ErrInsufficientData) {
		return skip(rep, model.ReasonInsufficient, err.Error())
	}
	if err != nil {
		return err
	}

	if v := t.Noise.Check(ctx, fine); v.Noise {
		rep.Outcome = model.OutcomeFilteredNoise
		rep.Decision = model.Hold(model.ReasonNoise)
		rep.Decision.Detail = v.Stage + ":" + v.Reason
		return nil
	}

	frame, err := calculator.Compute(fine, t.cfg.Fine)
	if errors.Is(err, model.ErrInsufficientData) {
		return skip(rep, model.ReasonInsufficient, err.Error())
	}
	if err != nil {
		return fmt.Errorf("fine indicators: %w", err)
	}
	rep.Fine = frame.Latest()
	price := rep.Fine.Price
	boundary := model.Fine.Boundary(frame.Last().Time)
	rep.CandleTS = boundary

	// Claim below is authoritative; this only skips the remaining fetches
	// for a candle that is already done.
	done, err := t.Recorder.HasProcessed(ctx, boundary)
	if err != nil {
		logger.Warn().Err(err).Msg("processed check failed, continuing to claim")
	}
	if done {
		rep.Outcome = model.OutcomeAlreadyProcessed
		rep.Decision = model.Hold(model.ReasonAlreadyDone)
		return nil
	}

	coarse := t.coarseFrame(ctx)

	acct, err := t.account(ctx, price)
	if err != nil {
		return err
	}
	rep.Account = acct

	score, err := t.Sentiment.Score(ctx)
	if err != nil {
		logger.Warn().Err(err).Int("sentiment", score).Msg("sentiment unavailable, using fallback")
	}
	rep.Sentiment = score

	claimed, err := t.Recorder.Claim(ctx, boundary, rep.RunID)
	if err != nil {
		return fmt.Errorf("claim candle %s: %w", boundary.Format(time.RFC3339), err)
	}
	if !claimed {
		rep.Outcome = model.OutcomeAlreadyProcessed
		rep.Decision = model.Hold(model.ReasonAlreadyDone)
		return nil
	}

	sc := &strategy.Context{CandleTS: boundary, Fine: frame, Coarse: coarse, Account: acct, Sentiment: score}
	verdict := t.Engine.Decide(ctx, sc)
	rep.Decision = verdict.Decision
	logger.Debug().Str("gate", verdict.Gate.Reason).Int("stages", len(verdict.Stages)).Msg("cascade evaluated")

	order := fund.Size(verdict.Decision, acct, price, rep.Fine.ATR, t.cfg.Fund)
	ex, next, err := t.Executor.Execute(ctx, order, acct, price)
	if err != nil {
		logger.Error().Err(err).Str("action", string(order.Action)).Msg("order execution failed")
		rep.Err = err.Error()
	}
	rep.Execution = ex
	rep.Account = next

	switch {
	case verdict.Vetoed:
		rep.Outcome = model.OutcomeVetoedByTrend
	case ex.Executed:
		rep.Outcome = model.OutcomeExecuted
	default:
		rep.Outcome = model.OutcomeSkippedHold
	}

	if ex.Executed && order.Action == model.ActionSell {
		result := fund.RealizedReturn(acct.AvgPrice, price, t.cfg.Fund.Fee)
		n, err := t.Recorder.SettlePatternHistory(ctx, result)
		if err != nil {
			logger.Warn().Err(err).Msg("settle pattern history")
		} else if n > 0 {
			logger.Info().Int("entries", n).Float64("result", result).Msg("pattern history settled")
		}
	}

	t.record(ctx, rep, coarse, t.reflect(ctx))
	return nil
}

// coarseFrame returns nil when the coarse timeframe cannot be used; the
// gate then passes.
func (t *Trader) coarseFrame(ctx context.Context) *calculator.Frame {
	logger := zerolog.Ctx(ctx)
	candles, err := t.Candles.Recent(ctx, model.Coarse)
	if err != nil {
		logger.Warn().Err(err).Msg("coarse candles unavailable")
		return nil
	}
	f, err := calculator.Compute(candles, t.cfg.Coarse)
	if err != nil {
		logger.Warn().Err(err).Msg("coarse indicators unavailable")
		return nil
	}
	return f
}

type accountSaver interface {
	SaveAccount(ctx context.Context, a model.Account) error
}

// account loads balances and clears dust before anything reads them.
func (t *Trader) account(ctx context.Context, price float64) (model.Account, error) {
	acct, err := t.Executor.Account(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("load account: %w", err)
	}
	norm, changed := fund.NormalizeDust(acct, price, t.cfg.Fund.MinOrder)
	if !changed {
		return acct, nil
	}
	zerolog.Ctx(ctx).Info().
		Float64("quantity", acct.Quantity).Float64("value", acct.PositionValue(price)).
		Msg("dust position cleared")
	if s, ok := t.Executor.(accountSaver); ok {
		if err := s.SaveAccount(ctx, norm); err != nil {
			return model.Account{}, fmt.Errorf("save normalized account: %w", err)
		}
	}
	return norm, nil
}

// reflect stores a new review when the interval has elapsed and returns
// the id of the latest one.
func (t *Trader) reflect(ctx context.Context) int64 {
	logger := zerolog.Ctx(ctx)
	latest, err := t.Recorder.LatestReflection(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("load latest reflection")
		return 0
	}
	var id int64
	if latest != nil {
		id = latest.ID
	}
	if t.Reflector == nil || t.cfg.ReflectionInterval <= 0 {
		return id
	}
	if latest != nil && t.now().Sub(latest.Time) < t.cfg.ReflectionInterval {
		return id
	}

	trades, err := t.Recorder.RecentTrades(ctx, t.cfg.ReflectionTrades)
	if err != nil || len(trades) == 0 {
		return id
	}
	text, err := t.Reflector.Reflect(ctx, trades)
	if err != nil {
		logger.Warn().Err(err).Msg("reflection failed")
		return id
	}
	newID, err := t.Recorder.RecordReflection(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("record reflection")
		return id
	}
	if err := t.Notifier.Send(ctx, notifier.FormatReflection(text)); err != nil {
		logger.Warn().Err(err).Msg("reflection notification failed")
	}
	return newID
}

func (t *Trader) record(ctx context.Context, rep *model.RunReport, coarse *calculator.Frame, reflectionID int64) {
	logger := zerolog.Ctx(ctx)
	snap := &recorder.IndicatorSnapshot{
		CandleTS:  rep.CandleTS,
		RunID:     rep.RunID,
		Fine:      rep.Fine,
		Sentiment: rep.Sentiment,
	}
	if coarse != nil {
		latest := coarse.Latest()
		snap.Coarse = &latest
	}
	if err := t.Recorder.RecordIndicator(ctx, snap); err != nil {
		logger.Error().Err(err).Msg("record indicator snapshot")
	}
	if err := t.Recorder.RecordTrade(ctx, &recorder.TradeRecord{
		Time:         rep.At,
		CandleTS:     rep.CandleTS,
		RunID:        rep.RunID,
		Decision:     rep.Decision,
		Outcome:      rep.Outcome,
		Execution:    rep.Execution,
		Account:      rep.Account,
		Price:        rep.Fine.Price,
		Mode:         rep.Mode,
		ReflectionID: reflectionID,
	}); err != nil {
		logger.Error().Err(err).Msg("record trade decision")
	}
}

func (t *Trader) finish(ctx context.Context, rep *model.RunReport) {
	t.mu.Lock()
	last := *rep
	t.last = &last
	t.mu.Unlock()

	zerolog.Ctx(ctx).Info().
		Str("outcome", string(rep.Outcome)).
		Str("action", string(rep.Decision.Action)).
		Str("reason", rep.Decision.Reason).
		Str("pattern", rep.Decision.Pattern).
		Time("candle_ts", rep.CandleTS).
		Bool("executed", rep.Execution.Executed).
		Msg("run finished")

	if rep.Outcome == model.OutcomeAlreadyProcessed {
		return
	}
	msg := notifier.FormatRunReport(*rep)
	if rep.Outcome == model.OutcomeFailed {
		msg = notifier.FormatFailure(rep.RunID, rep.Err, rep.At)
	}
	if err := t.Notifier.Send(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("notification failed")
	}
}

func skip(rep *model.RunReport, reason, detail string) error {
	rep.Outcome = model.OutcomeSkippedHold
	rep.Decision = model.Hold(reason)
	rep.Decision.Detail = detail
	return nil
}
