// Package tuning backtests the volume-confirmed trend strategy over
// historical candles and grid-searches its windows.
package tuning

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// LoadCSV reads candles from a CSV with a header naming datetime (or
// timestamp), open, high, low, close and volume columns. Rows are returned
// oldest first.
func LoadCSV(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["datetime"]; !ok {
		if i, ok := col["timestamp"]; ok {
			col["datetime"] = i
		}
	}
	for _, name := range []string{"datetime", "open", "high", "low", "close", "volume"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []model.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c, err := parseRow(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseRow(rec []string, col map[string]int) (model.Candle, error) {
	ts, err := parseTime(rec[col["datetime"]])
	if err != nil {
		return model.Candle{}, err
	}
	c := model.Candle{Time: ts}
	for name, dst := range map[string]*float64{
		"open": &c.Open, "high": &c.High, "low": &c.Low, "close": &c.Close, "volume": &c.Volume,
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > 1e12 {
			return time.UnixMilli(sec).UTC(), nil
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// WriteCSV writes one row per result.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"sma_window", "atr_window", "volume_threshold", "total_trades", "total_sells",
		"win_rate", "avg_profit_pct", "avg_loss_pct", "total_return_pct",
	}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for _, r := range results {
		if err := cw.Write([]string{
			strconv.Itoa(r.SMA), strconv.Itoa(r.ATR), strconv.FormatFloat(r.VolumeSpike, 'f', -1, 64),
			strconv.Itoa(r.TotalTrades), strconv.Itoa(r.TotalSells),
			f(r.WinRate), f(r.AvgProfitPct), f(r.AvgLossPct), f(r.TotalReturnPct),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
