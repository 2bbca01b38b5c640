package broadcast

import (
	"context"
	"sync"
)

// LocalBus dispatches notifications to subscribers in the same process.
// Slow subscribers drop notifications instead of blocking publishers; the
// poll fallback covers what they miss.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*localSub]struct{}
	buffer int
}

type localSub struct {
	ch chan Notification
}

// NewLocalBus returns a bus whose subscriber channels hold buffer items.
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 16
	}
	return &LocalBus{subs: make(map[Topic]map[*localSub]struct{}), buffer: buffer}
}

func (b *LocalBus) Name() string { return "local" }

func (b *LocalBus) Publish(_ context.Context, n Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[n.Topic] {
		select {
		case sub.ch <- n:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, topic Topic) (<-chan Notification, error) {
	sub := &localSub{ch: make(chan Notification, b.buffer)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*localSub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], sub)
		close(sub.ch)
		b.mu.Unlock()
	}()
	return sub.ch, nil
}

// Subscribers reports how many subscriptions are open on topic.
func (b *LocalBus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
