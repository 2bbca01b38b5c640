package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/broadcast"
)

type summarizer interface {
	Summarize(ctx context.Context, cartID string) (Summary, error)
}

// Session is one browsing context showing a cart: a tab, an admin panel or an
// event stream client. It keeps the last summary it rendered.
type Session struct {
	cartID   string
	source   summarizer
	logger   zerolog.Logger
	onChange func(Summary)

	mu      sync.Mutex
	current Summary
	shown   bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// OnChange registers a callback invoked after the rendered summary changes.
func OnChange(fn func(Summary)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func NewSession(cartID string, source summarizer, opts ...SessionOption) *Session {
	s := &Session{cartID: cartID, source: source, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) CartID() string { return s.cartID }

// Current returns the last rendered summary and whether one was rendered.
func (s *Session) Current() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.shown
}

// Refresh re-reads the cart and catalog. A result derived from an older cart
// write than the one on screen is discarded.
func (s *Session) Refresh(ctx context.Context) (Summary, error) {
	next, err := s.source.Summarize(ctx, s.cartID)
	if err != nil {
		return Summary{}, err
	}
	if !s.apply(next) {
		s.logger.Debug().Str("cart_id", s.cartID).Time("stale_at", next.CartUpdatedAt).Msg("discarded stale summary")
	}
	cur, _ := s.Current()
	return cur, nil
}

func (s *Session) apply(next Summary) bool {
	s.mu.Lock()
	if s.shown && !next.Newer(s.current) {
		s.mu.Unlock()
		return false
	}
	s.current = next
	s.shown = true
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(next)
	}
	return true
}

// Watch keeps the session current until ctx is done: it refreshes on cart
// notifications for this cart, on any product notification and every poll.
func (s *Session) Watch(ctx context.Context, sub broadcast.Subscriber, poll time.Duration) error {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", s.cartID).Msg("initial refresh failed")
	}
	w := broadcast.NewWatcher(sub,
		[]broadcast.Topic{broadcast.TopicCart, broadcast.TopicProducts},
		poll,
		func(ctx context.Context, _ broadcast.Trigger) error {
			_, err := s.Refresh(ctx)
			return err
		},
		broadcast.WithMatch(s.matches),
		broadcast.WithLogger(s.logger),
	)
	return w.Run(ctx)
}

func (s *Session) matches(n broadcast.Notification) bool {
	switch n.Topic {
	case broadcast.TopicCart:
		return n.Scope == s.cartID
	case broadcast.TopicProducts:
		return true
	default:
		return false
	}
}
