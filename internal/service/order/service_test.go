package order

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
)

type statusCounts map[string]int

func (c statusCounts) IncOrderStatus(status string) { c[status]++ }

func newService(t *testing.T) (*Service, statusCounts) {
	t.Helper()
	repo, err := orderrepo.NewFile(t.TempDir())
	require.NoError(t, err)
	counts := statusCounts{}
	svc := New(repo, zerolog.Nop(), counts)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc, counts
}

func validPayload() domain.OrderPayload {
	return domain.OrderPayload{
		Items:       []domain.LineItem{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(500)}},
		Subtotal:    decimal.NewFromInt(500),
		Shipping:    decimal.NewFromInt(69),
		PlatformFee: decimal.NewFromInt(10),
		Total:       decimal.NewFromInt(579),
		ShippingAddress: domain.ShippingAddress{
			Email: "a@b.co", FirstName: "A", LastName: "B", StreetAddress: "1 St",
			City: "Pune", State: "MH", PostalCode: "411001", Phone: "1",
		},
		PaymentMethod: domain.PaymentCashOnDelivery,
	}
}

func TestCreate_AssignsIDAndPending(t *testing.T) {
	svc, counts := newService(t)

	o, err := svc.Create(context.Background(), "u1", validPayload())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, 1, counts["pending"])

	got, err := svc.Get(context.Background(), Actor{UserID: "u1"}, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(579).Equal(got.Total))
}

func TestCreate_RejectsInconsistentPayload(t *testing.T) {
	svc, _ := newService(t)
	p := validPayload()
	p.Total = decimal.NewFromInt(1)
	p.ShippingAddress.City = ""
	p.PaymentMethod = domain.PaymentUPI

	_, err := svc.Create(context.Background(), "u1", p)

	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"paymentMethod", "shippingAddress.city", "total"}, ve.FieldNames())
}

func TestCreate_RejectsFabricatedFees(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*domain.OrderPayload)
		field string
	}{
		{
			name: "shipping waived below threshold",
			edit: func(p *domain.OrderPayload) {
				p.Shipping = decimal.Zero
				p.Total = decimal.NewFromInt(510)
			},
			field: "shipping",
		},
		{
			name: "platform fee dropped",
			edit: func(p *domain.OrderPayload) {
				p.PlatformFee = decimal.Zero
				p.Total = decimal.NewFromInt(569)
			},
			field: "platformFee",
		},
		{
			name: "subtotal below line sum",
			edit: func(p *domain.OrderPayload) {
				p.Subtotal = decimal.NewFromInt(1)
				p.Total = decimal.NewFromInt(80)
			},
			field: "subtotal",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t)
			p := validPayload()
			tc.edit(&p)

			_, err := svc.Create(context.Background(), "u1", p)

			ve, ok := domain.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, []string{tc.field}, ve.FieldNames())
		})
	}
}

func TestCreate_RejectsMadeUpTotalsTogether(t *testing.T) {
	svc, _ := newService(t)
	p := validPayload()
	p.Subtotal = decimal.NewFromInt(1)
	p.Shipping = decimal.Zero
	p.PlatformFee = decimal.Zero
	p.Total = decimal.NewFromInt(1)

	_, err := svc.Create(context.Background(), "u1", p)

	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"platformFee", "shipping", "subtotal"}, ve.FieldNames())
}

func TestCreate_FreeShippingAboveThreshold(t *testing.T) {
	svc, _ := newService(t)
	p := validPayload()
	p.Items[0].Quantity = 2
	p.Subtotal = decimal.NewFromInt(1000)
	p.Shipping = decimal.Zero
	p.Total = decimal.NewFromInt(1010)

	_, err := svc.Create(context.Background(), "u1", p)
	require.NoError(t, err)
}

func TestCreate_ChecksPricesAgainstCatalog(t *testing.T) {
	repo, err := orderrepo.NewFile(t.TempDir())
	require.NoError(t, err)
	source := catalog.SourceFunc(func(context.Context, bool) ([]domain.Product, error) {
		return []domain.Product{{ID: "p1", Price: decimal.NewFromInt(500), Status: domain.ProductActive}}, nil
	})
	svc := New(repo, zerolog.Nop(), nil, WithCatalog(source, time.Second))

	_, err = svc.Create(context.Background(), "u1", validPayload())
	require.NoError(t, err)

	p := validPayload()
	p.Items = append(p.Items, domain.LineItem{ProductID: "ghost", Quantity: 1, UnitPrice: decimal.NewFromInt(100)})
	p.Items[0].UnitPrice = decimal.NewFromInt(400)
	p.Subtotal = decimal.NewFromInt(500)

	_, err = svc.Create(context.Background(), "u1", p)

	ve, ok := domain.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{"items[0].unitPrice", "items[1]"}, ve.FieldNames())
}

func TestGet_HidesOtherUsersOrders(t *testing.T) {
	svc, _ := newService(t)
	o, err := svc.Create(context.Background(), "u1", validPayload())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), Actor{UserID: "u2"}, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), Actor{UserID: "admin", Admin: true}, o.ID)
	assert.NoError(t, err)
}

func TestUpdateStatus_FollowsLifecycle(t *testing.T) {
	svc, counts := newService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1", validPayload())
	require.NoError(t, err)

	for _, next := range []string{"processing", "shipped", "delivered"} {
		o, err = svc.UpdateStatus(ctx, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatus(next), o.Status)
	}
	assert.Equal(t, 1, counts["delivered"])

	_, err = svc.UpdateStatus(ctx, o.ID, "cancelled")
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestUpdateStatus_RejectsSkipsAndUnknown(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1", validPayload())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.ID, "delivered")
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	_, err = svc.UpdateStatus(ctx, o.ID, "lost")
	_, ok := domain.AsValidation(err)
	assert.True(t, ok)

	_, err = svc.UpdateStatus(ctx, "missing", "processing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cancelled, err := svc.UpdateStatus(ctx, o.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)
}

func TestListAllAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, "u1", validPayload())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", validPayload())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, a.ID, "processing")
	require.NoError(t, err)

	all, err := svc.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	processing, err := svc.ListAll(ctx, "processing")
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, a.ID, processing[0].ID)

	mine, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), domain.ErrNotFound)
}
