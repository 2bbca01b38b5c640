// Package cart is the cart store: it owns line merging and quantity
// mutation for one cart profile and announces every write.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

// ErrMalformedCart is reported through Loaded.Anomaly when persisted data
// cannot be decoded.
var ErrMalformedCart = errors.New("malformed cart data")

type anomalyMetrics interface {
	IncCartAnomaly()
}

type productLookup interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

type Service struct {
	storage  cartrepo.Storage
	notifier broadcast.Publisher
	products productLookup
	metrics  anomalyMetrics
	logger   zerolog.Logger
	now      func() time.Time
	locks    *keyedMutex
}

// Option customizes a Service.
type Option func(*Service)

func WithMetrics(m anomalyMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCatalog lets Load complete colors stored with only a code or only a
// name from the product's variant list, so they merge with full lines.
func WithCatalog(products productLookup) Option {
	return func(s *Service) { s.products = products }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(storage cartrepo.Storage, notifier broadcast.Publisher, logger zerolog.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = broadcast.Nop{}
	}
	s := &Service{
		storage:  storage,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID issues an unguessable cart profile id.
func NewID() string {
	return uuid.NewString()
}

// Loaded is the result of reading a cart. Anomaly is set when the persisted
// data was unusable and the cart degraded to empty, or when invalid lines
// were dropped.
type Loaded struct {
	Snapshot  domain.CartSnapshot
	UpdatedAt time.Time
	Anomaly   error
}

// AddInput describes a line to add.
type AddInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Size      string
	Color     *domain.Color
}

// Load reads and merges the cart. It fails only when storage itself is
// unreachable; undecodable data yields an empty cart and an Anomaly.
func (s *Service) Load(ctx context.Context, cartID string) (Loaded, error) {
	raw, err := s.storage.Read(ctx, cartID)
	if err != nil {
		return Loaded{}, fmt.Errorf("%w: read cart: %w", domain.ErrTransient, err)
	}
	loaded := decode(raw)
	if s.products != nil && len(loaded.Snapshot.Items) > 0 {
		loaded.Snapshot.Items = Merge(s.completeColors(ctx, loaded.Snapshot.Items))
	}
	if loaded.Anomaly != nil {
		s.logger.Warn().Err(loaded.Anomaly).Str("cart_id", cartID).Msg("cart degraded while loading")
		if s.metrics != nil {
			s.metrics.IncCartAnomaly()
		}
	}
	return loaded, nil
}

// Add increments the line with the same key or appends a new one.
func (s *Service) Add(ctx context.Context, cartID string, in AddInput) (domain.CartSnapshot, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Size = strings.TrimSpace(in.Size)
	verr := &domain.ValidationError{}
	if in.ProductID == "" {
		verr.Add("productId", "is required")
	}
	if in.Quantity < 1 {
		verr.Add("quantity", "must be at least 1")
	}
	if in.UnitPrice.IsNegative() {
		verr.Add("unitPrice", "must not be negative")
	}
	if verr.HasErrors() {
		return domain.CartSnapshot{}, verr
	}

	return s.mutate(ctx, cartID, func(snap *domain.CartSnapshot) (bool, error) {
		item := domain.LineItem{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Size:      in.Size,
			Color:     in.Color,
		}
		if idx := snap.Find(item.Key()); idx >= 0 {
			snap.Items[idx].Quantity += in.Quantity
			return true, nil
		}
		snap.Items = append(snap.Items, item)
		return true, nil
	})
}

// UpdateQuantity overwrites a line's quantity. Quantities below 1 are
// ignored and the current cart is returned unchanged.
func (s *Service) UpdateQuantity(ctx context.Context, cartID string, key domain.LineKey, quantity int) (domain.CartSnapshot, error) {
	if quantity < 1 {
		loaded, err := s.Load(ctx, cartID)
		if err != nil {
			return domain.CartSnapshot{}, err
		}
		return loaded.Snapshot, nil
	}
	return s.mutate(ctx, cartID, func(snap *domain.CartSnapshot) (bool, error) {
		idx := snap.Find(key)
		if idx < 0 {
			return false, domain.ErrNotFound
		}
		if snap.Items[idx].Quantity == quantity {
			return false, nil
		}
		snap.Items[idx].Quantity = quantity
		return true, nil
	})
}

// Remove deletes the line with key.
func (s *Service) Remove(ctx context.Context, cartID string, key domain.LineKey) (domain.CartSnapshot, error) {
	return s.mutate(ctx, cartID, func(snap *domain.CartSnapshot) (bool, error) {
		idx := snap.Find(key)
		if idx < 0 {
			return false, domain.ErrNotFound
		}
		snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
		return true, nil
	})
}

// Subtract takes the quantities of ordered lines out of the cart and drops
// lines that reach zero. Lines added or grown since the order was built keep
// the difference.
func (s *Service) Subtract(ctx context.Context, cartID string, ordered []domain.LineItem) (domain.CartSnapshot, error) {
	return s.mutate(ctx, cartID, func(snap *domain.CartSnapshot) (bool, error) {
		changed := false
		for _, o := range ordered {
			idx := snap.Find(o.Key())
			if idx < 0 {
				continue
			}
			changed = true
			if snap.Items[idx].Quantity > o.Quantity {
				snap.Items[idx].Quantity -= o.Quantity
				continue
			}
			snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
		}
		return changed, nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	_, err := s.mutate(ctx, cartID, func(snap *domain.CartSnapshot) (bool, error) {
		snap.Items = nil
		return true, nil
	})
	return err
}

// mutate runs a read-modify-write under the cart's lock, persists when fn
// reports a change and then announces it.
func (s *Service) mutate(ctx context.Context, cartID string, fn func(*domain.CartSnapshot) (bool, error)) (domain.CartSnapshot, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return domain.CartSnapshot{}, domain.NewValidationError(domain.FieldError{Field: "cartId", Message: "is required"})
	}
	unlock := s.locks.Lock(cartID)
	defer unlock()

	loaded, err := s.Load(ctx, cartID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	snap := loaded.Snapshot.Clone()
	changed, err := fn(&snap)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !changed {
		return snap, nil
	}

	updatedAt := s.now().UTC().Truncate(time.Millisecond)
	if !updatedAt.After(loaded.UpdatedAt) {
		updatedAt = loaded.UpdatedAt.Add(time.Millisecond)
	}
	raw, err := json.Marshal(domain.StoredCart{Items: snap.Items, UpdatedAt: updatedAt})
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := s.storage.Write(ctx, cartID, raw); err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("%w: write cart: %w", domain.ErrTransient, err)
	}

	n := broadcast.Notification{Topic: broadcast.TopicCart, Scope: cartID, At: updatedAt}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", cartID).Msg("cart change not announced")
	}
	return snap, nil
}

// completeColors resolves half-known colors against the catalog. Lines whose
// product or color cannot be resolved are kept as stored.
func (s *Service) completeColors(ctx context.Context, items []domain.LineItem) []domain.LineItem {
	products := map[string]*domain.Product{}
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		c := item.Color
		if c == nil || (c.Name != "" && c.Code != "") {
			out = append(out, item)
			continue
		}
		p, seen := products[item.ProductID]
		if !seen {
			fetched, err := s.products.Get(ctx, item.ProductID)
			switch {
			case err == nil:
				p = &fetched
			case !errors.Is(err, domain.ErrNotFound):
				s.logger.Debug().Err(err).Str("product_id", item.ProductID).Msg("color lookup failed")
			}
			products[item.ProductID] = p
		}
		if p != nil {
			raw := c.Code
			if raw == "" {
				raw = c.Name
			}
			if full, ok := p.ResolveColor(raw); ok {
				item.Color = &full
			}
		}
		out = append(out, item)
	}
	return out
}

// decode accepts the current document and the legacy bare array, drops
// invalid lines and merges duplicates.
func decode(raw []byte) Loaded {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Loaded{Snapshot: domain.CartSnapshot{}}
	}

	var stored domain.StoredCart
	var err error
	if trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &stored.Items)
	} else {
		err = json.Unmarshal(trimmed, &stored)
	}
	if err != nil {
		return Loaded{Anomaly: fmt.Errorf("%w: %v", ErrMalformedCart, err)}
	}

	valid := make([]domain.LineItem, 0, len(stored.Items))
	dropped := 0
	for _, item := range stored.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			dropped++
			continue
		}
		valid = append(valid, item)
	}

	out := Loaded{
		Snapshot:  domain.CartSnapshot{Items: Merge(valid)},
		UpdatedAt: stored.UpdatedAt,
	}
	if dropped > 0 {
		out.Anomaly = fmt.Errorf("%w: dropped %d invalid line(s)", ErrMalformedCart, dropped)
	}
	return out
}

// Merge collapses lines with the same key, summing quantities. The first
// occurrence keeps its position and captured price. Merge is idempotent.
func Merge(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	index := make(map[domain.LineKey]int, len(items))
	for _, item := range items {
		key := item.Key()
		if i, ok := index[key]; ok {
			out[i].Quantity += item.Quantity
			if c := out[i].Color; c != nil && item.Color != nil {
				merged := *c
				if merged.Name == "" {
					merged.Name = item.Color.Name
				}
				if merged.Code == "" {
					merged.Code = item.Color.Code
				}
				out[i].Color = &merged
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}
