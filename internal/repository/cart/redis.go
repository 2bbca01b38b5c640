package cart

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/kv"
)

type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type redisStorage struct {
	rdb redisStore
	ttl time.Duration
}

// NewRedis stores each cart under storefront:cart:<id>; every write renews ttl.
func NewRedis(rdb redisStore, ttl time.Duration) Storage {
	return &redisStorage{rdb: rdb, ttl: ttl}
}

func cartKey(cartID string) string {
	return kv.Key("cart", cartID)
}

func (s *redisStorage) Read(ctx context.Context, cartID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

func (s *redisStorage) Write(ctx context.Context, cartID string, raw []byte) error {
	return s.rdb.Set(ctx, cartKey(cartID), raw, s.ttl).Err()
}
