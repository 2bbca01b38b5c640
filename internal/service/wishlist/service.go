package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	wishlistrepo "storefront/internal/repository/wishlist"
)

type productGetter interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

type clearMetrics interface {
	AddWishlistClear(removed, failed int)
}

// ClearFailure names one entry that could not be removed.
type ClearFailure struct {
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

// ClearResult reports what a Clear removed and what it had to leave behind.
type ClearResult struct {
	Removed int            `json:"removed"`
	Failed  []ClearFailure `json:"failed"`
}

type Service struct {
	repo     wishlistrepo.Repository
	products productGetter
	notifier broadcast.Publisher
	logger   zerolog.Logger
	metrics  clearMetrics
	now      func() time.Time
}

func New(repo wishlistrepo.Repository, products productGetter, notifier broadcast.Publisher, logger zerolog.Logger, metrics clearMetrics) *Service {
	if notifier == nil {
		notifier = broadcast.Nop{}
	}
	return &Service{
		repo:     repo,
		products: products,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Add saves productID for userID. Saving the same product twice is
// domain.ErrAlreadyExists.
func (s *Service) Add(ctx context.Context, userID, productID string) (domain.WishlistEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.WishlistEntry{}, domain.NewValidationError(domain.FieldError{Field: "productId", Message: "is required"})
	}
	if s.products != nil {
		if _, err := s.products.Get(ctx, productID); err != nil {
			return domain.WishlistEntry{}, err
		}
	}
	entry := domain.WishlistEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		AddedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Add(ctx, entry); err != nil {
		return domain.WishlistEntry{}, err
	}
	s.announce(ctx, userID, entry.AddedAt)
	return entry, nil
}

// Remove drops productID. A product that was not saved is domain.ErrNotFound.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return err
	}
	s.announce(ctx, userID, s.now())
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	return s.repo.List(ctx, userID)
}

// Clear empties the wishlist. Backends without a bulk delete are cleared one
// entry at a time; failures do not stop the loop and are reported in the
// result.
func (s *Service) Clear(ctx context.Context, userID string) (ClearResult, error) {
	result := ClearResult{Failed: []ClearFailure{}}

	if bulk, ok := s.repo.(wishlistrepo.BulkRemover); ok {
		n, err := bulk.RemoveAll(ctx, userID)
		if err != nil {
			return result, fmt.Errorf("clear wishlist: %w", err)
		}
		result.Removed = n
		s.finishClear(ctx, userID, result)
		return result, nil
	}

	entries, err := s.repo.List(ctx, userID)
	if err != nil {
		return result, err
	}
	var errs error
	for _, e := range entries {
		err := s.repo.Remove(ctx, userID, e.ProductID)
		switch {
		case err == nil, errors.Is(err, domain.ErrNotFound):
			result.Removed++
		default:
			result.Failed = append(result.Failed, ClearFailure{ProductID: e.ProductID, Error: err.Error()})
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", e.ProductID, err))
		}
	}
	if errs != nil {
		s.logger.Warn().Err(errs).Str("user_id", userID).Int("failed", len(result.Failed)).Msg("wishlist partially cleared")
	}
	s.finishClear(ctx, userID, result)
	return result, nil
}

func (s *Service) finishClear(ctx context.Context, userID string, result ClearResult) {
	if s.metrics != nil {
		s.metrics.AddWishlistClear(result.Removed, len(result.Failed))
	}
	if result.Removed > 0 {
		s.announce(ctx, userID, s.now())
	}
}

func (s *Service) announce(ctx context.Context, userID string, at time.Time) {
	n := broadcast.Notification{Topic: broadcast.TopicWishlist, Scope: userID, At: at}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("wishlist change not announced")
	}
}
