// Package cache provides the TTL stores injected into the candle, sentiment
// and AI collaborators. Each invocation is a fresh process, so the file and
// Redis stores are the ones that actually save calls.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is a key/value cache with per-entry expiry. A zero ttl never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GetJSON decodes a cached value into v. It reports false on a miss.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

type entry struct {
	Value   []byte    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func (e entry) live(now time.Time) bool {
	return e.Expires.IsZero() || now.Before(e.Expires)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
