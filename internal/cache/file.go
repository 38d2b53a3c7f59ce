package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File is a Store backed by one JSON document on disk.
type File struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

func (f *File) load() (map[string]entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]entry{}, nil
		}
		return nil, err
	}
	entries := map[string]entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return nil, false, err
	}
	e, ok := entries[key]
	if !ok || !e.live(f.now()) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Set rewrites the document, dropping expired entries.
func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	now := f.now()
	for k, e := range entries {
		if !e.live(now) {
			delete(entries, k)
		}
	}
	entries[key] = entry{Value: value, Expires: expiry(now, ttl)}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
