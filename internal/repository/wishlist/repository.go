package wishlist

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Add fails with domain.ErrAlreadyExists when the product is already saved.
	Add(ctx context.Context, e domain.WishlistEntry) error
	// Remove fails with domain.ErrNotFound when the product is not saved.
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]domain.WishlistEntry, error)
}

// BulkRemover is implemented by backends that can drop a whole wishlist in
// one call.
type BulkRemover interface {
	RemoveAll(ctx context.Context, userID string) (int, error)
}
