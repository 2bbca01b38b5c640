package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/kv"
)

type pubSubClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Channel broadcasts over a Redis pub/sub channel named after the topic.
type Channel struct {
	rdb    pubSubClient
	logger zerolog.Logger
}

func NewChannel(rdb pubSubClient, logger zerolog.Logger) *Channel {
	return &Channel{rdb: rdb, logger: logger}
}

func (c *Channel) Name() string { return "channel" }

func channelName(topic Topic) string {
	return kv.Key("topic", string(topic))
}

func (c *Channel) Publish(ctx context.Context, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, channelName(n.Topic), raw).Err()
}

func (c *Channel) Subscribe(ctx context.Context, topic Topic) (<-chan Notification, error) {
	ps := c.rdb.Subscribe(ctx, channelName(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan Notification, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					c.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed notification")
					continue
				}
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
