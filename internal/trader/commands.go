package trader

import (
	"context"
	"strings"

	"TradeSentinel/internal/notifier"
)

const helpText = "Commands:\n/status - last run and balances\n/trades - recent decisions\n/run - run now"

// HandleCommand answers a chat command.
func (t *Trader) HandleCommand(ctx context.Context, command string) string {
	cmd, _, _ := strings.Cut(strings.TrimSpace(command), "@")
	switch cmd {
	case "/status":
		if r := t.LastReport(); r != nil {
			return notifier.FormatRunReport(*r)
		}
		acct, err := t.Executor.Account(ctx)
		if err != nil {
			return "Account unavailable: " + err.Error()
		}
		return "No run yet.\n" + notifier.FormatAccount(acct, 0)
	case "/trades":
		trades, err := t.Recorder.RecentTrades(ctx, 10)
		if err != nil {
			return "Trade log unavailable: " + err.Error()
		}
		return notifier.FormatTrades(trades)
	case "/run":
		// the report is delivered by Run itself
		t.Run(ctx)
		return ""
	}
	return helpText
}
