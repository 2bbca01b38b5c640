package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trigger tells a refresh callback why it runs. Notification is nil for the
// fallback poll.
type Trigger struct {
	Notification *Notification
}

// Poll reports whether the trigger is the periodic fallback.
func (t Trigger) Poll() bool { return t.Notification == nil }

// RefreshFunc re-reads authoritative state.
type RefreshFunc func(ctx context.Context, t Trigger) error

// Watcher re-runs a refresh whenever a matching notification arrives and on
// every poll tick, so a context converges within one poll interval even if
// every notification is lost.
type Watcher struct {
	sub     Subscriber
	topics  []Topic
	match   func(Notification) bool
	poll    time.Duration
	refresh RefreshFunc
	logger  zerolog.Logger
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithMatch filters which notifications trigger a refresh.
func WithMatch(match func(Notification) bool) WatcherOption {
	return func(w *Watcher) { w.match = match }
}

// WithLogger sets the logger used for refresh and subscribe failures.
func WithLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

func NewWatcher(sub Subscriber, topics []Topic, poll time.Duration, refresh RefreshFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		sub:     sub,
		topics:  topics,
		poll:    poll,
		refresh: refresh,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	events := w.subscribe(ctx)

	var tick <-chan time.Time
	if w.poll > 0 {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.match != nil && !w.match(n) {
				continue
			}
			w.run(ctx, Trigger{Notification: &n})
		case <-tick:
			w.run(ctx, Trigger{})
		}
	}
}

func (w *Watcher) run(ctx context.Context, t Trigger) {
	if err := w.refresh(ctx, t); err != nil && ctx.Err() == nil {
		w.logger.Warn().Err(err).Bool("poll", t.Poll()).Msg("refresh failed")
	}
}

// subscribe merges every topic. Topics that cannot be subscribed are left to
// the poll.
func (w *Watcher) subscribe(ctx context.Context) <-chan Notification {
	var sources []<-chan Notification
	for _, topic := range w.topics {
		ch, err := w.sub.Subscribe(ctx, topic)
		if err != nil {
			w.logger.Warn().Err(err).Str("topic", string(topic)).Msg("subscribe failed, relying on poll")
			continue
		}
		sources = append(sources, ch)
	}
	if len(sources) == 0 {
		return nil
	}
	if len(sources) == 1 {
		return sources[0]
	}

	out := make(chan Notification)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src <-chan Notification) {
			defer wg.Done()
			for n := range src {
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
