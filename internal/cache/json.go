package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// GetJSON reads and decodes key. Backend and decode failures are logged and
// reported as a miss: the cache is never a correctness dependency.
func GetJSON(ctx context.Context, c BytesCache, key string, dst any) bool {
	if c == nil {
		return false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed", "key", key, "error", err.Error())
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		slog.Warn("cache decode failed", "key", key, "error", err.Error())
		return false
	}
	return true
}

func SetJSON(ctx context.Context, c BytesCache, key string, v any, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache encode failed", "key", key, "error", err.Error())
		return
	}
	if err := c.Set(ctx, key, b, ttl); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err.Error())
	}
}

func Invalidate(ctx context.Context, c BytesCache, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		slog.Warn("cache delete failed", "keys", keys, "error", err.Error())
	}
}

func InvalidatePattern(ctx context.Context, c BytesCache, pattern string) {
	if c == nil {
		return
	}
	if err := c.DeletePattern(ctx, pattern); err != nil {
		slog.Warn("cache delete pattern failed", "pattern", pattern, "error", err.Error())
	}
}
