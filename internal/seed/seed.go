// Package seed loads demo catalog data and an admin account for manual
// testing. Every step is idempotent.
package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
	productsvc "storefront/internal/service/product"
)

type categoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (domain.Category, error)
}

type productWriter interface {
	Upsert(ctx context.Context, p domain.Product) (domain.Product, error)
}

type adminEnsurer interface {
	EnsureAdmin(ctx context.Context, in customersvc.SignupInput) (domain.Customer, error)
}

// Admin holds the credentials of the seeded admin. An empty email skips it.
type Admin struct {
	Email    string
	Password string
}

type Seeder struct {
	categories categoryWriter
	products   productWriter
	customers  adminEnsurer
	logger     zerolog.Logger
}

func New(categories categoryWriter, products productWriter, customers adminEnsurer, logger zerolog.Logger) *Seeder {
	return &Seeder{categories: categories, products: products, customers: customers, logger: logger}
}

var demoCategories = []domain.Category{
	{Key: "women", Name: "Women", Slug: "women"},
	{Key: "men", Name: "Men", Slug: "men"},
	{Key: "accessories", Name: "Accessories", Slug: "accessories"},
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func pricePtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var demoProducts = []productsvc.Input{
	{
		Slug:          "silk-kurta",
		Name:          "Silk Kurta",
		Description:   "Hand woven silk kurta with a straight cut.",
		Price:         price(1299),
		OriginalPrice: pricePtr(1599),
		Stock:         25,
		Category:      "women",
		Sizes:         []string{"S", "M", "L", "XL"},
		Colors:        []domain.Color{{Name: "Maroon", Code: "#800000"}, {Name: "Teal", Code: "#008080"}},
		Rating:        4.6,
		Reviews:       38,
	},
	{
		Slug:        "linen-shirt",
		Name:        "Linen Shirt",
		Description: "Breathable linen shirt for warm days.",
		Price:       price(899),
		Stock:       40,
		Category:    "men",
		Sizes:       []string{"M", "L", "XL"},
		Colors:      []domain.Color{{Name: "White", Code: "#ffffff"}, {Name: "Sky", Code: "#87ceeb"}},
		Rating:      4.2,
		Reviews:     17,
	},
	{
		Slug:        "cotton-scarf",
		Name:        "Cotton Scarf",
		Description: "Block printed cotton scarf.",
		Price:       price(249),
		Stock:       100,
		Category:    "accessories",
		Colors:      []domain.Color{{Name: "Indigo", Code: "#4b0082"}},
		Rating:      4.0,
		Reviews:     9,
	},
	{
		Slug:        "canvas-tote",
		Name:        "Canvas Tote",
		Description: "Sturdy everyday tote.",
		Price:       price(499),
		Stock:       0,
		Category:    "accessories",
		Status:      string(domain.ProductInactive),
	},
}

// Apply upserts the demo categories and products and ensures the admin.
func (s *Seeder) Apply(ctx context.Context, admin Admin) error {
	for _, c := range demoCategories {
		if _, err := s.categories.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Key, err)
		}
	}
	for _, in := range demoProducts {
		if err := in.Validate(); err != nil {
			return fmt.Errorf("seed product %s: %w", in.Slug, err)
		}
		p, err := s.products.Upsert(ctx, in.Product())
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", in.Slug, err)
		}
		s.logger.Debug().Str("product_id", p.ID).Str("slug", p.Slug).Msg("product seeded")
	}
	if admin.Email == "" || s.customers == nil {
		return nil
	}
	c, err := s.customers.EnsureAdmin(ctx, customersvc.SignupInput{
		Email:     admin.Email,
		Password:  admin.Password,
		FirstName: "Admin",
	})
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	s.logger.Info().Str("customer_id", c.ID).Str("email", c.Email).Msg("admin ready")
	return nil
}
