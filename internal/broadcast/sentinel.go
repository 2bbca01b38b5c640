package broadcast

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/kv"
)

const memberSep = "\x1f"

type sentinelStore interface {
	ZAddGT(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Sentinel signals changes by writing a timestamp per scope into a sorted
// set; observers poll for members newer than the last timestamp they saw.
// A write with an older timestamp than the stored one never wins.
type Sentinel struct {
	rdb      sentinelStore
	interval time.Duration
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewSentinel returns a sentinel adapter polling every interval. Entries
// older than ttl are pruned on publish.
func NewSentinel(rdb sentinelStore, interval, ttl time.Duration, logger zerolog.Logger) *Sentinel {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sentinel{rdb: rdb, interval: interval, ttl: ttl, logger: logger}
}

func (s *Sentinel) Name() string { return "sentinel" }

func sentinelKey(topic Topic) string {
	return kv.Key("sentinel", string(topic))
}

func (s *Sentinel) Publish(ctx context.Context, n Notification) error {
	key := sentinelKey(n.Topic)
	member := n.Scope + memberSep + n.Origin
	score := float64(n.At.UnixMilli())

	// GT keeps the newest timestamp when writers race.
	if err := s.rdb.ZAddGT(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return err
	}
	cutoff := strconv.FormatInt(n.At.Add(-s.ttl).UnixMilli(), 10)
	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.ttl).Err()
}

func (s *Sentinel) Subscribe(ctx context.Context, topic Topic) (<-chan Notification, error) {
	key := sentinelKey(topic)
	last, err := s.latest(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make(chan Notification, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			entries, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
				Min: "(" + strconv.FormatInt(last, 10),
				Max: "+inf",
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn().Err(err).Str("topic", string(topic)).Msg("sentinel poll failed")
				}
				continue
			}
			for _, z := range entries {
				ms := int64(z.Score)
				if ms > last {
					last = ms
				}
				n := decodeMember(topic, z)
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// latest returns the newest timestamp currently stored, or zero.
func (s *Sentinel) latest(ctx context.Context, key string) (int64, error) {
	entries, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	var last int64
	for _, z := range entries {
		if ms := int64(z.Score); ms > last {
			last = ms
		}
	}
	return last, nil
}

func decodeMember(topic Topic, z redis.Z) Notification {
	member, _ := z.Member.(string)
	scope, origin, _ := strings.Cut(member, memberSep)
	return Notification{
		Topic:  topic,
		Scope:  scope,
		Origin: origin,
		At:     time.UnixMilli(int64(z.Score)).UTC(),
	}
}
