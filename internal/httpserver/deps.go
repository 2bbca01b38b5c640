package httpserver

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	wishlistsvc "storefront/internal/service/wishlist"
	"storefront/internal/storefront"
)

type productService interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, in productsvc.Input) (domain.Product, error)
	Update(ctx context.Context, id string, in productsvc.Input) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (domain.Category, error)
}

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (domain.Customer, error)
	Login(ctx context.Context, email, password string) (domain.Customer, string, error)
	Logout(ctx context.Context, token string) error
	LookupByToken(ctx context.Context, token string) (domain.Customer, error)
	AccessTTLSeconds() int
}

type cartService interface {
	Add(ctx context.Context, cartID string, in cartsvc.AddInput) (domain.CartSnapshot, error)
	UpdateQuantity(ctx context.Context, cartID string, key domain.LineKey, quantity int) (domain.CartSnapshot, error)
	Remove(ctx context.Context, cartID string, key domain.LineKey) (domain.CartSnapshot, error)
	Clear(ctx context.Context, cartID string) error
}

type summaryService interface {
	Summarize(ctx context.Context, cartID string) (storefront.Summary, error)
}

type checkoutService interface {
	Submit(ctx context.Context, cartID, userID string, form checkoutsvc.AddressForm, method string) (checkoutsvc.Confirmation, error)
}

type orderService interface {
	Create(ctx context.Context, userID string, payload domain.OrderPayload) (domain.Order, error)
	Get(ctx context.Context, actor ordersvc.Actor, id string) (domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context, status string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}

type wishlistService interface {
	Add(ctx context.Context, userID, productID string) (domain.WishlistEntry, error)
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]domain.WishlistEntry, error)
	Clear(ctx context.Context, userID string) (wishlistsvc.ClearResult, error)
}

type httpMetrics interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps carries every collaborator the router needs. Nil services leave
// their routes unregistered.
type Deps struct {
	Products   productService
	Categories categoryService
	Customers  customerService
	Carts      cartService
	Summaries  summaryService
	Checkout   checkoutService
	Orders     orderService
	Wishlist   wishlistService

	// Events feeds the cart SSE stream; nil disables it.
	Events       broadcast.Subscriber
	PollInterval time.Duration
	KeepAlive    time.Duration

	Metrics     httpMetrics
	Gatherer    prometheus.Gatherer
	Ready       map[string]Pinger
	CORSOrigins []string
}
