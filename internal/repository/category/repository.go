package category

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Category, error)
	// Upsert inserts or renames the category with the same key.
	Upsert(ctx context.Context, c domain.Category) (domain.Category, error)
}
