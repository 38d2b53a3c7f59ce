// Package notifier delivers run summaries to chat channels.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Notifier sends one text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Multi fans a message out to every channel. A failing channel does not
// stop delivery to the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retrying retries a channel with exponential backoff.
type Retrying struct {
	Next       Notifier
	MaxRetries uint64
	Initial    time.Duration
}

// WithRetry wraps n with up to maxRetries retries starting at one second.
func WithRetry(n Notifier, maxRetries uint64) *Retrying {
	return &Retrying{Next: n, MaxRetries: maxRetries, Initial: time.Second}
}

func (r *Retrying) Send(ctx context.Context, text string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.Initial
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.MaxRetries), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := r.Next.Send(ctx, text)
		var pe *permanentError
		if errors.As(err, &pe) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("notification send failed")
	})
}

// permanentError marks a rejection that retrying cannot fix, such as a bad
// token or chat id.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// postJSON posts payload to url and fails on any non-2xx status. Statuses
// listed in permanent are not retried.
func postJSON(ctx context.Context, client *http.Client, service, url string, payload any, permanent ...int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("%s API error: status %d, body: %s", service, resp.StatusCode, respBody)
	if slices.Contains(permanent, resp.StatusCode) {
		return &permanentError{err}
	}
	return err
}

// Nop discards messages. Used when no channel is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }
