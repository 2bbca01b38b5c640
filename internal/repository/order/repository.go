package order

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// Filter narrows an admin listing. A zero Status lists every order.
type Filter struct {
	Status domain.OrderStatus
}

type Repository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, f Filter) ([]domain.Order, error)
	// SetStatus moves an order from one status to another only if it is still
	// in from. A lost race yields domain.ErrStateConflict.
	SetStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}
