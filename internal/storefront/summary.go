package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/pricing"
	cartsvc "storefront/internal/service/cart"
)

type cartLoader interface {
	Load(ctx context.Context, cartID string) (cartsvc.Loaded, error)
}

// Summary is what every storefront surface renders for a cart: the cart view,
// the checkout view and the order-summary widget.
type Summary struct {
	CartID        string
	Snapshot      domain.CartSnapshot
	Breakdown     pricing.Breakdown
	CartUpdatedAt time.Time
	CatalogAt     time.Time
	Anomaly       error
}

// Summarizer prices a cart against a fresh catalog snapshot.
type Summarizer struct {
	carts   cartLoader
	source  catalog.Source
	timeout time.Duration
	logger  zerolog.Logger
}

func NewSummarizer(carts cartLoader, source catalog.Source, timeout time.Duration, logger zerolog.Logger) *Summarizer {
	return &Summarizer{carts: carts, source: source, timeout: timeout, logger: logger}
}

// Summarize loads the cart, fetches the active catalog and prices the cart.
// A catalog that cannot be reached yields domain.ErrTransient.
func (s *Summarizer) Summarize(ctx context.Context, cartID string) (Summary, error) {
	loaded, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return Summary{}, err
	}
	snap, err := catalog.Fetch(ctx, s.source, s.timeout)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize cart %s: %w", cartID, err)
	}

	breakdown := pricing.Price(loaded.Snapshot, snap.Lookup)
	if ids := breakdown.UnresolvableIDs(); len(ids) > 0 {
		s.logger.Debug().Str("cart_id", cartID).Strs("product_ids", ids).Msg("cart holds unresolvable lines")
	}
	return Summary{
		CartID:        cartID,
		Snapshot:      loaded.Snapshot,
		Breakdown:     breakdown,
		CartUpdatedAt: loaded.UpdatedAt,
		CatalogAt:     snap.FetchedAt,
		Anomaly:       loaded.Anomaly,
	}, nil
}

// Newer reports whether s may replace prev on screen. A summary built from an
// older cart write never replaces one built from a newer write; with the same
// cart write the fresher catalog wins.
func (s Summary) Newer(prev Summary) bool {
	if s.CartUpdatedAt.Before(prev.CartUpdatedAt) {
		return false
	}
	if s.CartUpdatedAt.After(prev.CartUpdatedAt) {
		return true
	}
	return !s.CatalogAt.Before(prev.CatalogAt)
}
