package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"storefront/internal/domain"
)

type notificationMetrics interface {
	IncNotification(adapter, topic string, err error)
}

// Fanout publishes through every adapter and merges their deliveries. A
// publish succeeds when at least one adapter accepts it; a notification seen
// on several adapters is delivered once.
type Fanout struct {
	adapters []Adapter
	origin   string
	metrics  notificationMetrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewFanout combines adapters. origin tags notifications published without one.
func NewFanout(origin string, logger zerolog.Logger, metrics notificationMetrics, adapters ...Adapter) *Fanout {
	return &Fanout{
		adapters: adapters,
		origin:   origin,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Adapters returns the adapter names in publish order.
func (f *Fanout) Adapters() []string {
	names := make([]string, 0, len(f.adapters))
	for _, a := range f.adapters {
		names = append(names, a.Name())
	}
	return names
}

func (f *Fanout) Publish(ctx context.Context, n Notification) error {
	n = normalize(n, f.origin, f.now())

	var errs error
	delivered := 0
	for _, a := range f.adapters {
		err := a.Publish(ctx, n)
		if f.metrics != nil {
			f.metrics.IncNotification(a.Name(), string(n.Topic), err)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 && errs != nil {
		return fmt.Errorf("%w: publish %s: %w", domain.ErrTransient, n.Topic, errs)
	}
	if errs != nil {
		f.logger.Warn().Err(errs).Str("topic", string(n.Topic)).Int("delivered", delivered).Msg("notification partially published")
	}
	return nil
}

func (f *Fanout) Subscribe(ctx context.Context, topic Topic) (<-chan Notification, error) {
	var (
		sources []<-chan Notification
		errs    error
	)
	for _, a := range f.adapters {
		ch, err := a.Subscribe(ctx, topic)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		sources = append(sources, ch)
	}
	if len(sources) == 0 {
		if errs == nil {
			return Nop{}.Subscribe(ctx, topic)
		}
		return nil, fmt.Errorf("%w: subscribe %s: %w", domain.ErrTransient, topic, errs)
	}
	if errs != nil {
		f.logger.Warn().Err(errs).Str("topic", string(topic)).Msg("some sync adapters unavailable")
	}

	merged := make(chan Notification)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src <-chan Notification) {
			defer wg.Done()
			for n := range src {
				select {
				case merged <- n:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	out := make(chan Notification, 16)
	go func() {
		defer close(out)
		seen := newRecent(256)
		for n := range merged {
			if !seen.add(n.Key()) {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// recent remembers the last size keys.
type recent struct {
	keys  map[string]struct{}
	order []string
	size  int
}

func newRecent(size int) *recent {
	return &recent{keys: make(map[string]struct{}, size), size: size}
}

// add returns false when key was already seen.
func (r *recent) add(key string) bool {
	if _, ok := r.keys[key]; ok {
		return false
	}
	r.keys[key] = struct{}{}
	r.order = append(r.order, key)
	if len(r.order) > r.size {
		delete(r.keys, r.order[0])
		r.order = r.order[1:]
	}
	return true
}
