package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. It serves daemon mode and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.live(m.now()) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{Value: append([]byte(nil), value...), Expires: expiry(m.now(), ttl)}
	return nil
}
