// Package catalog reads the product catalog for pricing and display.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"storefront/internal/domain"
)

// Source lists products, optionally only active ones.
type Source interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, activeOnly bool) ([]domain.Product, error)

func (f SourceFunc) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return f(ctx, activeOnly)
}

// Snapshot is an immutable view of the catalog at FetchedAt.
type Snapshot struct {
	products  map[string]domain.Product
	order     []string
	FetchedAt time.Time
}

// NewSnapshot indexes products by id. Later duplicates replace earlier ones.
func NewSnapshot(products []domain.Product, fetchedAt time.Time) Snapshot {
	s := Snapshot{products: make(map[string]domain.Product, len(products)), FetchedAt: fetchedAt}
	for _, p := range products {
		if _, ok := s.products[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.products[p.ID] = p
	}
	return s
}

// Lookup resolves active products only; inactive or unknown ids are
// unresolvable for pricing.
func (s Snapshot) Lookup(id string) (domain.Product, bool) {
	p, ok := s.products[id]
	if !ok || !p.IsActive() {
		return domain.Product{}, false
	}
	return p, true
}

// Get returns any known product, active or not.
func (s Snapshot) Get(id string) (domain.Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// Products returns the products in fetch order.
func (s Snapshot) Products() []domain.Product {
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// Len reports the number of products.
func (s Snapshot) Len() int { return len(s.products) }

// Fetch lists active products under timeout and wraps the result in a
// Snapshot. Timeouts and network failures come back as domain.ErrTransient.
func Fetch(ctx context.Context, src Source, timeout time.Duration) (Snapshot, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	products, err := src.ListProducts(ctx, true)
	if err != nil {
		return Snapshot{}, classify(err)
	}
	return NewSnapshot(products, time.Now().UTC()), nil
}

func classify(err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: fetch catalog: %w", domain.ErrTransient, err)
	}
	return fmt.Errorf("fetch catalog: %w", err)
}
