package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store. Writers do not coordinate: the last
// write to a key wins. SetMany applies all of its writes or none of them.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	SetMany(ctx context.Context, values map[string]string) error
}

// GetJSON decodes the JSON value stored under key into dst. It reports
// false when the key is absent or the stored value is malformed; a
// malformed value is logged and otherwise treated as absent.
func GetJSON(ctx context.Context, s Store, logger *slog.Logger, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		if logger != nil {
			logger.Warn("discarding malformed stored value", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false, nil
	}
	return true, nil
}

// SetJSON stores the JSON encoding of value under key.
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// Batch collects JSON-encoded writes for a single SetMany call.
type Batch map[string]string

// Put encodes value and adds it to the batch.
func (b Batch) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b[key] = string(raw)
	return nil
}
