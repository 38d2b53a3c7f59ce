package notifier

import (
	"fmt"
	"strings"
	"time"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

var outcomeIcon = map[model.Outcome]string{
	model.OutcomeExecuted:         "💰",
	model.OutcomeSkippedHold:      "⏸",
	model.OutcomeFilteredNoise:    "🔇",
	model.OutcomeVetoedByTrend:    "🛑",
	model.OutcomeAlreadyProcessed: "♻️",
	model.OutcomeFailed:           "❌",
}

// FormatRunReport formats one run's result.
func FormatRunReport(r model.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s TradeSentinel [%s] %s\n", outcomeIcon[r.Outcome], r.Mode, r.Outcome)
	if !r.CandleTS.IsZero() {
		fmt.Fprintf(&b, "Candle: %s UTC\n", r.CandleTS.UTC().Format("2006-01-02 15:04"))
	}
	if r.Decision.Action != "" {
		fmt.Fprintf(&b, "Decision: %s (%s)", strings.ToUpper(string(r.Decision.Action)), r.Decision.Reason)
		if r.Decision.Pattern != "" {
			fmt.Fprintf(&b, " pattern=%s", r.Decision.Pattern)
		}
		b.WriteString("\n")
	}
	if r.Execution.Executed {
		fmt.Fprintf(&b, "Filled: %.8f BTC @ %s, ₩%s (%.2f%% of equity)\n",
			r.Execution.Quantity, won(r.Execution.Price), won(r.Execution.Notional), r.Execution.Fraction)
	} else if r.Execution.Reason != "" {
		fmt.Fprintf(&b, "Not filled: %s\n", r.Execution.Reason)
	}
	if r.Fine.Price > 0 {
		fmt.Fprintf(&b, "Price %s | SMA %s | RSI %.1f | MACD %.0f | F&G %d\n",
			won(r.Fine.Price), won(r.Fine.SMA), r.Fine.RSI, r.Fine.MACDDiff, r.Sentiment)
	}
	if r.Execution.Unsynced {
		b.WriteString("Balances below are projected: exchange resync failed\n")
	}
	b.WriteString(FormatAccount(r.Account, r.Fine.Price))
	if r.Err != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Err)
	}
	return b.String()
}

// FormatAccount formats balances, valued at price when known.
func FormatAccount(a model.Account, price float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cash ₩%s | BTC %.8f", won(a.Cash), a.Quantity)
	if a.Holding() {
		fmt.Fprintf(&b, " @ avg %s", won(a.AvgPrice))
	}
	if price > 0 {
		fmt.Fprintf(&b, " | Equity ₩%s", won(a.Equity(price)))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatTrades lists recent decisions, newest first.
func FormatTrades(trades []recorder.TradeRecord) string {
	if len(trades) == 0 {
		return "No trades recorded yet."
	}
	var b strings.Builder
	b.WriteString("📒 Recent decisions\n")
	for _, t := range trades {
		fmt.Fprintf(&b, "%s %s %s %s",
			t.CandleTS.UTC().Format("01-02 15:04"), outcomeIcon[t.Outcome], t.Decision.Action, t.Decision.Reason)
		if t.Execution.Executed {
			fmt.Fprintf(&b, " ₩%s", won(t.Execution.Notional))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatFailure reports a run that could not complete.
func FormatFailure(runID, reason string, at time.Time) string {
	return fmt.Sprintf("❌ TradeSentinel run %s failed at %s UTC\n%s", runID, at.UTC().Format("2006-01-02 15:04"), reason)
}

// FormatReflection wraps a periodic trade review.
func FormatReflection(text string) string {
	return "🪞 Trade review\n\n" + text
}

func won(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
