package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandHandler answers one chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

const (
	pollTimeout = 30 // seconds, server side
	pollBackoff = 5 * time.Second
)

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and answers commands from the
// configured chat. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	lg := log.With().Str("component", "telegram").Logger()
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.Client.Transport}
	offset := 0

	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lg.Warn().Err(err).Dur("retry_in", pollBackoff).Msg("getUpdates failed")
			sleep(ctx, pollBackoff)
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u, handler)
		}
	}
	lg.Info().Msg("polling stopped")
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	u := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d", t.BaseURL, t.BotToken, offset, pollTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool             `json:"ok"`
		Description string           `json:"description"`
		Result      []telegramUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode updates (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getUpdates: %s", out.Description)
	}
	return out.Result, nil
}

func (t *TelegramNotifier) dispatch(ctx context.Context, u telegramUpdate, handler CommandHandler) {
	m := u.Message
	if m == nil || strings.TrimSpace(m.Text) == "" {
		return
	}
	if strconv.FormatInt(m.Chat.ID, 10) != t.ChatID {
		log.Warn().Int64("chat_id", m.Chat.ID).Msg("ignoring command from unknown chat")
		return
	}
	cmd := strings.TrimSpace(m.Text)
	log.Info().Str("command", cmd).Msg("received command")
	reply := handler(ctx, cmd)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("send reply")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
