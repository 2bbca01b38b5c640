package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	wishlistrepo "storefront/internal/repository/wishlist"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	wishlistsvc "storefront/internal/service/wishlist"
	"storefront/internal/storefront"
)

// stubProducts is an in-memory product service.
type stubProducts struct {
	mu       sync.Mutex
	products map[string]domain.Product
	err      error
}

func newStubProducts() *stubProducts {
	return &stubProducts{products: map[string]domain.Product{
		"P1": {
			ID:     "P1",
			Name:   "Kurta",
			Price:  decimal.NewFromInt(500),
			Status: domain.ProductActive,
			Sizes:  []string{"M", "L"},
			Colors: []domain.Color{{Name: "Red", Code: "#ff0000"}, {Name: "Blue", Code: "#0000ff"}},
		},
		"P2":   {ID: "P2", Name: "Scarf", Price: decimal.NewFromInt(250), Status: domain.ProductActive},
		"GONE": {ID: "GONE", Name: "Retired", Price: decimal.NewFromInt(100), Status: domain.ProductInactive},
	}}
}

func (s *stubProducts) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Product{}
	for _, p := range s.products {
		if activeOnly && !p.IsActive() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProducts) Get(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *stubProducts) Create(_ context.Context, in productsvc.Input) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.Product{ID: "P" + in.Name, Name: in.Name, Price: in.Price, Status: domain.ProductActive}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubProducts) Update(_ context.Context, id string, in productsvc.Input) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	p.Name, p.Price = in.Name, in.Price
	s.products[id] = p
	return p, nil
}

func (s *stubProducts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *stubProducts) setPrice(id string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = decimal.NewFromInt(price)
	s.products[id] = p
}

// stubCustomers accepts the tokens "customer-token" and "admin-token".
type stubCustomers struct {
	signupErr error
	loginErr  error
}

var (
	shopper = domain.Customer{ID: "cust-1", Email: "shopper@example.com", Role: domain.RoleCustomer}
	admin   = domain.Customer{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}
)

func (s *stubCustomers) Signup(_ context.Context, in customersvc.SignupInput) (domain.Customer, error) {
	if s.signupErr != nil {
		return domain.Customer{}, s.signupErr
	}
	return domain.Customer{ID: "cust-new", Email: in.Email, FirstName: in.FirstName, Role: domain.RoleCustomer}, nil
}

func (s *stubCustomers) Login(_ context.Context, _, _ string) (domain.Customer, string, error) {
	if s.loginErr != nil {
		return domain.Customer{}, "", s.loginErr
	}
	return shopper, "customer-token", nil
}

func (s *stubCustomers) Logout(context.Context, string) error { return nil }

func (s *stubCustomers) LookupByToken(_ context.Context, token string) (domain.Customer, error) {
	switch token {
	case "customer-token":
		return shopper, nil
	case "admin-token":
		return admin, nil
	}
	return domain.Customer{}, customersvc.ErrInvalidToken
}

func (s *stubCustomers) AccessTTLSeconds() int { return 3600 }

type stubCategories struct{}

func (stubCategories) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: "1", Key: "women", Name: "Women", Slug: "women"}}, nil
}

func (stubCategories) Upsert(_ context.Context, c domain.Category) (domain.Category, error) {
	if c.Slug == "" {
		c.Slug = c.Key
	}
	c.ID = "cat-" + c.Key
	return c, nil
}

type failingStorage struct{}

func (failingStorage) Read(context.Context, string) ([]byte, error) {
	return nil, io.ErrUnexpectedEOF
}

func (failingStorage) Write(context.Context, string, []byte) error {
	return io.ErrUnexpectedEOF
}

type testEnv struct {
	router   *gin.Engine
	products *stubProducts
	carts    *cartsvc.Service
	orders   *ordersvc.Service
	bus      *broadcast.LocalBus
}

type envOption func(*envConfig)

type envConfig struct {
	storage cartrepo.Storage
	ready   map[string]Pinger
}

func withStorage(s cartrepo.Storage) envOption {
	return func(c *envConfig) { c.storage = s }
}

func withReady(name string, p Pinger) envOption {
	return func(c *envConfig) {
		if c.ready == nil {
			c.ready = map[string]Pinger{}
		}
		c.ready[name] = p
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := envConfig{storage: cartrepo.NewMemory()}
	for _, opt := range opts {
		opt(&cfg)
	}

	env := &testEnv{products: newStubProducts(), bus: broadcast.NewLocalBus(8)}
	log := zerolog.Nop()

	env.carts = cartsvc.New(cfg.storage, env.bus, log, cartsvc.WithCatalog(env.products))
	summaries := storefront.NewSummarizer(env.carts, env.products, time.Second, log)

	orderRepo, err := orderrepo.NewFile(t.TempDir())
	require.NoError(t, err)
	env.orders = ordersvc.New(orderRepo, log, nil, ordersvc.WithCatalog(env.products, time.Second))

	wishRepo, err := wishlistrepo.NewFile(t.TempDir())
	require.NoError(t, err)

	router, err := buildRouter(log, Deps{
		Products:     env.products,
		Categories:   stubCategories{},
		Customers:    &stubCustomers{},
		Carts:        env.carts,
		Summaries:    summaries,
		Checkout:     checkoutsvc.New(summaries, env.carts, env.orders, time.Second, log, nil),
		Orders:       env.orders,
		Wishlist:     wishlistsvc.New(wishRepo, env.products, env.bus, log, nil),
		Events:       env.bus,
		PollInterval: 50 * time.Millisecond,
		KeepAlive:    time.Second,
		Ready:        cfg.ready,
	})
	require.NoError(t, err)
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the success envelope into dest.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func fieldNames(e apiError) []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Field)
	}
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body=%s", rec.Body.String())
}
