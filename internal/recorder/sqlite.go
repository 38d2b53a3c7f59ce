package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// Options configures the SQLite recorder.
type Options struct {
	BusyTimeout time.Duration // how long a writer waits for the lock
	InitialCash float64       // seed for the simulated account
}

// SQLiteRecorder persists run history to a SQLite database. Every write
// runs in its own BEGIN IMMEDIATE transaction so concurrent processes
// serialize on the database lock.
type SQLiteRecorder struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, opts Options) (*SQLiteRecorder, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 3 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		dbPath, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &SQLiteRecorder{db: db, opts: opts}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			cash       REAL NOT NULL,
			quantity   REAL NOT NULL,
			avg_price  REAL NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS candle_claims (
			candle_ts  INTEGER PRIMARY KEY,
			run_id     TEXT,
			claimed_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS indicator_log (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			candle_ts        INTEGER NOT NULL,
			run_id           TEXT,
			price            REAL,
			sma              REAL,
			atr              REAL,
			volume_ma        REAL,
			macd_diff        REAL,
			coarse_sma       REAL,
			coarse_rsi       REAL,
			coarse_macd_diff REAL,
			fear_greed       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_candle ON indicator_log(candle_ts)`,

		`CREATE TABLE IF NOT EXISTS trade_log (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			candle_ts     INTEGER NOT NULL,
			run_id        TEXT,
			decision      TEXT,
			pattern       TEXT,
			reason        TEXT,
			detail        TEXT,
			outcome       TEXT,
			executed      INTEGER,
			notional      REAL,
			quantity      REAL,
			percentage    REAL,
			krw_balance   REAL,
			btc_balance   REAL,
			avg_price     REAL,
			price         REAL,
			mode          TEXT,
			reflection_id INTEGER,
			pattern_entry INTEGER NOT NULL DEFAULT 0,
			unsynced      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_candle ON trade_log(candle_ts)`,

		`CREATE TABLE IF NOT EXISTS pattern_history (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			pattern   TEXT NOT NULL,
			decision  TEXT NOT NULL,
			result    REAL NOT NULL DEFAULT 0,
			settled   INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS reflections (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			text      TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// withTx runs fn in one transaction, committing on success and rolling
// back on any error.
func (r *SQLiteRecorder) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// classify tags SQLITE_BUSY failures with model.ErrLockContended.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", model.ErrLockContended, err)
	}
	return err
}

const processedQuery = `SELECT
	EXISTS(SELECT 1 FROM candle_claims WHERE candle_ts >= ?1) OR
	EXISTS(SELECT 1 FROM indicator_log WHERE candle_ts >= ?1) OR
	EXISTS(SELECT 1 FROM trade_log WHERE candle_ts >= ?1)`

func (r *SQLiteRecorder) Claim(ctx context.Context, candleTS time.Time, runID string) (bool, error) {
	claimed := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var done bool
		if err := tx.QueryRowContext(ctx, processedQuery, candleTS.Unix()).Scan(&done); err != nil {
			return fmt.Errorf("check processed: %w", err)
		}
		if done {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO candle_claims (candle_ts, run_id, claimed_at) VALUES (?,?,?)`,
			candleTS.Unix(), runID, time.Now().Unix()); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *SQLiteRecorder) HasProcessed(ctx context.Context, candleTS time.Time) (bool, error) {
	var done bool
	err := r.db.QueryRowContext(ctx, processedQuery, candleTS.Unix()).Scan(&done)
	return done, classify(err)
}

func (r *SQLiteRecorder) RecordIndicator(ctx context.Context, snap *IndicatorSnapshot) error {
	var coarse model.IndicatorSet
	if snap.Coarse != nil {
		coarse = *snap.Coarse
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO indicator_log
			(timestamp, candle_ts, run_id, price, sma, atr, volume_ma, macd_diff,
			 coarse_sma, coarse_rsi, coarse_macd_diff, fear_greed)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			time.Now().Unix(), snap.CandleTS.Unix(), snap.RunID,
			snap.Fine.Price, snap.Fine.SMA, snap.Fine.ATR, snap.Fine.VolumeMA, snap.Fine.MACDDiff,
			coarse.SMA, coarse.RSI, coarse.MACDDiff, snap.Sentiment,
		)
		return err
	})
}

func (r *SQLiteRecorder) RecordTrade(ctx context.Context, rec *TradeRecord) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO trade_log
			(timestamp, candle_ts, run_id, decision, pattern, reason, detail, outcome,
			 executed, notional, quantity, percentage,
			 krw_balance, btc_balance, avg_price, price, mode, reflection_id,
			 pattern_entry, unsynced)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			time.Now().Unix(), rec.CandleTS.Unix(), rec.RunID,
			string(rec.Decision.Action), rec.Decision.Pattern, rec.Decision.Reason, rec.Decision.Detail, string(rec.Outcome),
			rec.Execution.Executed, rec.Execution.Notional, rec.Execution.Quantity, rec.Execution.Fraction,
			rec.Account.Cash, rec.Account.Quantity, rec.Account.AvgPrice, rec.Price, rec.Mode, rec.ReflectionID,
			rec.Decision.PatternEntry, rec.Execution.Unsynced,
		)
		return err
	})
}

func (r *SQLiteRecorder) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, candle_ts, run_id, decision, pattern, reason, detail,
		outcome, executed, notional, quantity, percentage, krw_balance, btc_balance, avg_price, price, mode, reflection_id,
		pattern_entry, unsynced
		FROM trade_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			t              TradeRecord
			ts, candleTS   int64
			action, result string
		)
		if err := rows.Scan(&t.ID, &ts, &candleTS, &t.RunID, &action, &t.Decision.Pattern, &t.Decision.Reason,
			&t.Decision.Detail, &result, &t.Execution.Executed, &t.Execution.Notional, &t.Execution.Quantity,
			&t.Execution.Fraction, &t.Account.Cash, &t.Account.Quantity, &t.Account.AvgPrice, &t.Price,
			&t.Mode, &t.ReflectionID, &t.Decision.PatternEntry, &t.Execution.Unsynced); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Time = time.Unix(ts, 0).UTC()
		t.CandleTS = time.Unix(candleTS, 0).UTC()
		t.Decision.Action = model.Action(action)
		t.Outcome = model.Outcome(result)
		t.Execution.Price = t.Price
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) AppendPatternHistory(ctx context.Context, e model.PatternHistoryEntry) (int64, error) {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pattern_history (timestamp, pattern, decision, result, settled) VALUES (?,?,?,?,?)`,
			ts.Unix(), e.Label, string(e.Decision), e.Result, e.Settled)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *SQLiteRecorder) LoadPatternHistory(ctx context.Context) ([]model.PatternHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, pattern, decision, result, settled FROM pattern_history ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.PatternHistoryEntry
	for rows.Next() {
		var (
			e        model.PatternHistoryEntry
			ts       int64
			decision string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Label, &decision, &e.Result, &e.Settled); err != nil {
			return nil, fmt.Errorf("scan pattern history: %w", err)
		}
		e.Time = time.Unix(ts, 0).UTC()
		e.Decision = model.Action(decision)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) SettlePatternHistory(ctx context.Context, result float64) (int, error) {
	var n int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE pattern_history SET result = ?, settled = 1
			WHERE settled = 0 AND id IN (
				SELECT pattern_entry FROM trade_log
				WHERE executed = 1 AND decision = 'buy' AND pattern_entry > 0
				  AND id > COALESCE((SELECT MAX(id) FROM trade_log WHERE executed = 1 AND decision = 'sell'), 0))`,
			result)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func (r *SQLiteRecorder) LoadAccount(ctx context.Context) (model.Account, error) {
	var a model.Account
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT cash, quantity, avg_price FROM account WHERE id = 1`).
			Scan(&a.Cash, &a.Quantity, &a.AvgPrice)
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		a = model.Account{Cash: r.opts.InitialCash}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account (id, cash, quantity, avg_price, updated_at) VALUES (1, ?, 0, 0, ?)`,
			a.Cash, time.Now().Unix())
		return err
	})
	return a, err
}

func (r *SQLiteRecorder) SaveAccount(ctx context.Context, a model.Account) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO account (id, cash, quantity, avg_price, updated_at)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET cash = excluded.cash, quantity = excluded.quantity,
				avg_price = excluded.avg_price, updated_at = excluded.updated_at`,
			a.Cash, a.Quantity, a.AvgPrice, time.Now().Unix())
		return err
	})
}

func (r *SQLiteRecorder) RecordReflection(ctx context.Context, text string) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO reflections (timestamp, text) VALUES (?, ?)`, time.Now().Unix(), text)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *SQLiteRecorder) LatestReflection(ctx context.Context) (*Reflection, error) {
	var (
		ref Reflection
		ts  int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, timestamp, text FROM reflections ORDER BY id DESC LIMIT 1`).
		Scan(&ref.ID, &ts, &ref.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	ref.Time = time.Unix(ts, 0).UTC()
	return &ref, nil
}

func (r *SQLiteRecorder) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM indicator_log WHERE id NOT IN (SELECT id FROM indicator_log ORDER BY id DESC LIMIT ?)`,
			`DELETE FROM trade_log WHERE id NOT IN (SELECT id FROM trade_log ORDER BY id DESC LIMIT ?)`,
			`DELETE FROM candle_claims WHERE candle_ts NOT IN (SELECT candle_ts FROM candle_claims ORDER BY candle_ts DESC LIMIT ?)`,
		} {
			if _, err := tx.ExecContext(ctx, q, keep); err != nil {
				return fmt.Errorf("prune: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
