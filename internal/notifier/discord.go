package notifier

import (
	"context"
	"net/http"
	"time"
)

// discordLimit is the webhook content length cap.
const discordLimit = 2000

// DiscordNotifier posts messages to a Discord webhook.
type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Send(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > discordLimit {
		text = string(r[:discordLimit-1]) + "…"
	}
	return postJSON(ctx, d.Client, "discord", d.WebhookURL, map[string]string{"content": text},
		http.StatusNotFound, http.StatusUnauthorized)
}
