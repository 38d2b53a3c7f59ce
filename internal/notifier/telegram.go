package notifier

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Client   *http.Client
}

// NewTelegramNotifier builds a bot client. proxyURL may be empty.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if u, err := url.Parse(proxyURL); err == nil && proxyURL != "" {
		tr.Proxy = http.ProxyURL(u)
	}
	return &TelegramNotifier{
		BaseURL:  telegramAPI,
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 15 * time.Second, Transport: tr},
	}
}

// Send posts text to the configured chat without parse_mode, so reason
// labels like "price<SMA" arrive verbatim.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	msg := struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}{t.ChatID, text}
	return postJSON(ctx, t.Client, "telegram", t.BaseURL+"/bot"+t.BotToken+"/sendMessage", msg,
		http.StatusUnauthorized, http.StatusBadRequest)
}
