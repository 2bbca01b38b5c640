// Package broadcast propagates change notifications between browsing
// contexts and server instances. Callers depend on Port; the adapters are
// interchangeable and can be combined with Fanout.
package broadcast

import (
	"context"
	"strconv"
	"time"
)

// Topic names the kind of state that changed.
type Topic string

const (
	TopicCart     Topic = "cart"
	TopicWishlist Topic = "wishlist"
	TopicProducts Topic = "products"
)

// Notification says that state under Topic/Scope changed at At. It carries
// no payload; receivers re-read the authoritative state.
type Notification struct {
	Topic  Topic     `json:"topic"`
	Scope  string    `json:"scope,omitempty"`
	At     time.Time `json:"at"`
	Origin string    `json:"origin,omitempty"`
}

// Key identifies a notification across adapters.
func (n Notification) Key() string {
	return string(n.Topic) + "|" + n.Scope + "|" + strconv.FormatInt(n.At.UnixMilli(), 10) + "|" + n.Origin
}

// Publisher emits notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Subscriber delivers notifications for one topic until ctx is done, then
// closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, topic Topic) (<-chan Notification, error)
}

// Port is the notification port used by stores and views.
type Port interface {
	Publisher
	Subscriber
}

// Adapter is a named transport behind the port.
type Adapter interface {
	Port
	Name() string
}

// normalize stamps missing fields and truncates to the millisecond precision
// every adapter can carry.
func normalize(n Notification, origin string, now time.Time) Notification {
	if n.At.IsZero() {
		n.At = now
	}
	n.At = n.At.UTC().Truncate(time.Millisecond)
	if n.Origin == "" {
		n.Origin = origin
	}
	return n
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }

func (Nop) Subscribe(ctx context.Context, _ Topic) (<-chan Notification, error) {
	ch := make(chan Notification)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
