package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:"

// RevocationSet stores revoked token ids with a TTL equal to the token's
// remaining lifetime, so entries disappear once the token would have expired anyway.
type RevocationSet struct {
	c *redis.Client
}

func NewRevocationSet(c *redis.Client) *RevocationSet {
	return &RevocationSet{c: c}
}

func (s *RevocationSet) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.c.Set(ctx, revokedPrefix+id, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "redis revoke")
	}
	return nil
}

func (s *RevocationSet) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.c.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists")
	}
	return n > 0, nil
}
