package model

import "time"

// PatternInterval is a labeled span returned by pattern detection.
type PatternInterval struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Covers reports whether ts lies within the interval, inclusive.
func (p PatternInterval) Covers(ts time.Time) bool {
	return !ts.Before(p.Start) && !ts.After(p.End)
}

// PatternHistoryEntry records one AI-consulted pattern decision.
type PatternHistoryEntry struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"time"`
	Label    string    `json:"label"`
	Decision Action    `json:"decision"`
	Result   float64   `json:"result"`
	Settled  bool      `json:"settled"`
}

// PatternStats summarizes history for one label.
type PatternStats struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`
	Settled   int     `json:"settled"`
	WinRate   float64 `json:"win_rate"`
	AvgReturn float64 `json:"avg_return"`
}

// SummarizePatterns computes stats for label. Unsettled entries count
// toward Count only.
func SummarizePatterns(label string, history []PatternHistoryEntry) PatternStats {
	st := PatternStats{Label: label}
	var wins int
	var sum float64
	for _, h := range history {
		if h.Label != label {
			continue
		}
		st.Count++
		if !h.Settled {
			continue
		}
		st.Settled++
		sum += h.Result
		if h.Result > 0 {
			wins++
		}
	}
	if st.Settled > 0 {
		st.WinRate = float64(wins) / float64(st.Settled)
		st.AvgReturn = sum / float64(st.Settled)
	}
	return st
}
