package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/pricing"
	orderrepo "storefront/internal/repository/order"
)

type statusMetrics interface {
	IncOrderStatus(status string)
}

// Actor is the caller on whose behalf an order is read or changed.
type Actor struct {
	UserID string
	Admin  bool
}

type Service struct {
	repo    orderrepo.Repository
	catalog catalog.Source
	timeout time.Duration
	logger  zerolog.Logger
	metrics statusMetrics
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithCatalog makes Create check every unit price against the current
// catalog, fetched under timeout.
func WithCatalog(src catalog.Source, timeout time.Duration) Option {
	return func(s *Service) {
		s.catalog = src
		s.timeout = timeout
	}
}

func New(repo orderrepo.Repository, logger zerolog.Logger, metrics statusMetrics, opts ...Option) *Service {
	s := &Service{repo: repo, logger: logger, metrics: metrics, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the payload, assigns an id and stores the order as pending.
func (s *Service) Create(ctx context.Context, userID string, payload domain.OrderPayload) (domain.Order, error) {
	if err := validatePayload(userID, payload); err != nil {
		return domain.Order{}, err
	}
	if s.catalog != nil {
		if err := s.verifyPrices(ctx, payload.Items); err != nil {
			return domain.Order{}, err
		}
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	o := domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           payload.Items,
		Subtotal:        payload.Subtotal,
		Shipping:        payload.Shipping,
		PlatformFee:     payload.PlatformFee,
		Total:           payload.Total,
		ShippingAddress: payload.ShippingAddress,
		PaymentMethod:   payload.PaymentMethod,
		Status:          domain.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return domain.Order{}, fmt.Errorf("store order: %w", err)
	}
	s.observe(o.Status)
	s.logger.Info().Str("order_id", o.ID).Str("user_id", userID).Int("lines", len(o.Items)).Msg("order created")
	return o, nil
}

func validatePayload(userID string, p domain.OrderPayload) error {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(userID) == "" {
		verr.Add("userId", "is required")
	}
	if len(p.Items) == 0 {
		verr.Add("items", "empty cart")
	}
	lineSum := decimal.Zero
	for i, it := range p.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			verr.Add(fmt.Sprintf("items[%d]", i), "is invalid")
			continue
		}
		lineSum = lineSum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	a := p.ShippingAddress
	for _, f := range []struct{ name, value string }{
		{"email", a.Email},
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"streetAddress", a.StreetAddress},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"phone", a.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			verr.Add("shippingAddress."+f.name, "is required")
		}
	}
	if _, err := domain.ParsePaymentMethod(string(p.PaymentMethod)); err != nil {
		verr.Add("paymentMethod", "payment method is not available")
	}
	if len(p.Items) > 0 && !p.Subtotal.Equal(lineSum) {
		verr.Add("subtotal", "must equal the sum of unit price times quantity")
	}
	if !p.Shipping.Equal(pricing.Shipping(p.Subtotal)) {
		verr.Add("shipping", "does not match the shipping rule")
	}
	if !p.PlatformFee.Equal(pricing.PlatformFee) {
		verr.Add("platformFee", "must be "+pricing.PlatformFee.String())
	}
	sum := p.Subtotal.Add(p.Shipping).Add(p.PlatformFee)
	if p.Subtotal.IsNegative() || !p.Total.Equal(sum) {
		verr.Add("total", "must equal subtotal + shipping + platformFee")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// verifyPrices rejects lines whose product is gone or whose unit price is not
// the catalog's current price.
func (s *Service) verifyPrices(ctx context.Context, items []domain.LineItem) error {
	snap, err := catalog.Fetch(ctx, s.catalog, s.timeout)
	if err != nil {
		return err
	}
	verr := &domain.ValidationError{}
	for i, it := range items {
		product, ok := snap.Lookup(it.ProductID)
		switch {
		case !ok:
			verr.Add(fmt.Sprintf("items[%d]", i), "product is not available")
		case !product.Price.Equal(it.UnitPrice):
			verr.Add(fmt.Sprintf("items[%d].unitPrice", i), "does not match the current price")
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns an order visible to actor. Other users' orders read as missing.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) ListAll(ctx context.Context, status string) ([]domain.Order, error) {
	var f orderrepo.Filter
	if status != "" {
		st, ok := domain.ParseOrderStatus(status)
		if !ok {
			return nil, domain.NewValidationError(domain.FieldError{Field: "status", Message: "unknown order status"})
		}
		f.Status = st
	}
	return s.repo.List(ctx, f)
}

// UpdateStatus moves an order along its lifecycle. Disallowed moves are
// domain.ErrStateConflict.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return domain.Order{}, domain.NewValidationError(domain.FieldError{Field: "status", Message: "unknown order status"})
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !current.Status.CanTransition(next) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", domain.ErrStateConflict, current.Status, next)
	}
	updated, err := s.repo.SetStatus(ctx, id, current.Status, next, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	s.observe(updated.Status)
	s.logger.Info().Str("order_id", id).Str("from", string(current.Status)).Str("to", string(next)).Msg("order status changed")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("order_id", id).Msg("order deleted")
	return nil
}

func (s *Service) observe(status domain.OrderStatus) {
	if s.metrics != nil {
		s.metrics.IncOrderStatus(string(status))
	}
}
