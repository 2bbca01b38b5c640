package customer

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (domain.Customer, error)
	GetByID(ctx context.Context, id string) (domain.Customer, error)
	SetRole(ctx context.Context, id string, role domain.Role) error
}
