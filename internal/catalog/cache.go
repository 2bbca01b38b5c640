package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	"storefront/internal/kv"
)

type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cacheMetrics interface {
	IncCatalogCache(hit bool)
}

// Cached keeps the product list in Redis for ttl. Cache failures fall
// through to the wrapped source.
type Cached struct {
	next    Source
	rdb     cacheStore
	ttl     time.Duration
	metrics cacheMetrics
	logger  zerolog.Logger
}

func NewCached(next Source, rdb cacheStore, ttl time.Duration, metrics cacheMetrics, logger zerolog.Logger) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, metrics: metrics, logger: logger}
}

func cacheKey(activeOnly bool) string {
	if activeOnly {
		return kv.Key("catalog", "active")
	}
	return kv.Key("catalog", "all")
}

func (c *Cached) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	key := cacheKey(activeOnly)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var products []domain.Product
		if jsonErr := json.Unmarshal(raw, &products); jsonErr == nil {
			c.observe(true)
			return products, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	c.observe(false)

	products, err := c.next.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(products); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return products, nil
}

// Invalidate drops both cached lists.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, cacheKey(true), cacheKey(false)).Err()
}

// InvalidateOn drops the cache whenever a products notification arrives,
// until ctx is done.
func (c *Cached) InvalidateOn(ctx context.Context, sub broadcast.Subscriber) error {
	ch, err := sub.Subscribe(ctx, broadcast.TopicProducts)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
			if err := c.Invalidate(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
			}
		}
	}()
	return nil
}

func (c *Cached) observe(hit bool) {
	if c.metrics != nil {
		c.metrics.IncCatalogCache(hit)
	}
}
