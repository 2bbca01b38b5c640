package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/pricing"
	"storefront/internal/storefront"
	"storefront/internal/validation"
)

type summarizer interface {
	Summarize(ctx context.Context, cartID string) (storefront.Summary, error)
}

type cartClearer interface {
	Subtract(ctx context.Context, cartID string, ordered []domain.LineItem) (domain.CartSnapshot, error)
}

type orderIntake interface {
	Create(ctx context.Context, userID string, payload domain.OrderPayload) (domain.Order, error)
}

type checkoutMetrics interface {
	IncCheckout(outcome string)
}

// AddressForm is the shipping form as submitted by the shopper.
type AddressForm struct {
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	StreetAddress string `json:"streetAddress" validate:"required"`
	Apartment     string `json:"apartment"`
	City          string `json:"city" validate:"required"`
	State         string `json:"state" validate:"required"`
	PostalCode    string `json:"postalCode" validate:"required"`
	Country       string `json:"country"`
	Phone         string `json:"phone" validate:"required"`
}

func (f AddressForm) normalized() AddressForm {
	return AddressForm{
		Email:         strings.TrimSpace(f.Email),
		FirstName:     strings.TrimSpace(f.FirstName),
		LastName:      strings.TrimSpace(f.LastName),
		StreetAddress: strings.TrimSpace(f.StreetAddress),
		Apartment:     strings.TrimSpace(f.Apartment),
		City:          strings.TrimSpace(f.City),
		State:         strings.TrimSpace(f.State),
		PostalCode:    strings.TrimSpace(f.PostalCode),
		Country:       strings.TrimSpace(f.Country),
		Phone:         strings.TrimSpace(f.Phone),
	}
}

func (f AddressForm) address() domain.ShippingAddress {
	return domain.ShippingAddress{
		Email:         f.Email,
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		StreetAddress: f.StreetAddress,
		Apartment:     f.Apartment,
		City:          f.City,
		State:         f.State,
		PostalCode:    f.PostalCode,
		Country:       f.Country,
		Phone:         f.Phone,
	}
}

// BuildOrderPayload assembles the order from a priced cart. Every problem
// (empty cart, unresolvable lines, missing address fields, unavailable
// payment method) is reported in one ValidationError.
func BuildOrderPayload(snapshot domain.CartSnapshot, breakdown pricing.Breakdown, form AddressForm, method string) (domain.OrderPayload, error) {
	form = form.normalized()
	verr := &domain.ValidationError{}

	if snapshot.IsEmpty() {
		verr.Add("items", "empty cart")
	} else if ids := breakdown.UnresolvableIDs(); len(ids) > 0 {
		verr.Add("items", "no longer available: "+strings.Join(ids, ", "))
	}
	if err := validation.Struct(form); err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			verr.Fields = append(verr.Fields, ve.Fields...)
		}
	}
	pm, err := domain.ParsePaymentMethod(strings.TrimSpace(method))
	if err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			verr.Fields = append(verr.Fields, ve.Fields...)
		}
	}
	if verr.HasErrors() {
		return domain.OrderPayload{}, verr
	}

	items := make([]domain.LineItem, 0, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		item := line.Item
		item.UnitPrice = line.UnitPrice
		items = append(items, item)
	}
	return domain.OrderPayload{
		Items:           items,
		Subtotal:        breakdown.Subtotal,
		Shipping:        breakdown.Shipping,
		PlatformFee:     breakdown.PlatformFee,
		Total:           breakdown.Total,
		ShippingAddress: form.address(),
		PaymentMethod:   pm,
	}, nil
}

// Confirmation is returned after an order was accepted.
type Confirmation struct {
	OrderID   string             `json:"orderId"`
	Status    domain.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	Redirect  string             `json:"redirect"`
}

type Service struct {
	summaries summarizer
	carts     cartClearer
	orders    orderIntake
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   checkoutMetrics
}

func New(summaries summarizer, carts cartClearer, orders orderIntake, timeout time.Duration, logger zerolog.Logger, metrics checkoutMetrics) *Service {
	return &Service{
		summaries: summaries,
		carts:     carts,
		orders:    orders,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit re-prices the cart, submits the order once and on success takes the
// ordered lines out of the cart. On any failure the cart is left as it was.
func (s *Service) Submit(ctx context.Context, cartID, userID string, form AddressForm, method string) (Confirmation, error) {
	summary, err := s.summaries.Summarize(ctx, cartID)
	if err != nil {
		s.observe("failed")
		return Confirmation{}, err
	}
	payload, err := BuildOrderPayload(summary.Snapshot, summary.Breakdown, form, method)
	if err != nil {
		s.observe("invalid")
		return Confirmation{}, err
	}

	order, err := s.create(ctx, userID, payload)
	if err != nil {
		s.observe("failed")
		s.logger.Warn().Err(err).Str("cart_id", cartID).Msg("order submission failed")
		return Confirmation{}, err
	}

	if _, err := s.carts.Subtract(ctx, cartID, summary.Snapshot.Items); err != nil {
		s.logger.Error().Err(err).Str("cart_id", cartID).Str("order_id", order.ID).Msg("order placed but cart not cleared")
	}
	s.observe("placed")
	s.logger.Info().Str("order_id", order.ID).Str("user_id", userID).Str("total", order.Total.String()).Msg("order placed")

	return Confirmation{
		OrderID:   order.ID,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		Redirect:  "/orders/" + order.ID,
	}, nil
}

func (s *Service) create(ctx context.Context, userID string, payload domain.OrderPayload) (domain.Order, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	order, err := s.orders.Create(ctx, userID, payload)
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTransient) {
		return domain.Order{}, fmt.Errorf("%w: order intake: %w", domain.ErrTransient, err)
	}
	return order, err
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckout(outcome)
	}
}
