// Package cache declares the narrow cache contracts the services depend on.
// The redis implementation lives in rediscache.
package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort key/value store. A miss is (nil, false, nil).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// RevocationSet holds revoked credential ids until their natural expiry.
type RevocationSet interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// Counter is a fixed-window counter used for request throttling.
type Counter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
