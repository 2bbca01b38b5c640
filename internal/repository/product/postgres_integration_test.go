//go:build integration

package product

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/testsupport"
)

func TestPostgres_CreateListGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(testsupport.Postgres(ctx, t), zerolog.Nop())

	original := decimal.RequireFromString("799.00")
	created, err := repo.Create(ctx, domain.Product{
		Slug:          "linen-kurta",
		Name:          "Linen Kurta",
		Price:         decimal.RequireFromString("649.50"),
		OriginalPrice: &original,
		Stock:         12,
		Category:      "kurtas",
		Status:        domain.ProductActive,
		Sizes:         []string{"S", "M"},
		Colors:        []domain.Color{{Name: "Indigo", Code: "#3f51b5"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !created.Price.Equal(decimal.RequireFromString("649.5")) {
		t.Fatalf("unexpected product %+v", created)
	}
	if created.OriginalPrice == nil || !created.OriginalPrice.Equal(original) {
		t.Fatalf("original price not round-tripped: %+v", created.OriginalPrice)
	}

	if _, err := repo.Create(ctx, domain.Product{Slug: "linen-kurta", Name: "dup", Price: decimal.NewFromInt(1), Status: domain.ProductActive}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := repo.Create(ctx, domain.Product{Slug: "old-scarf", Name: "Old Scarf", Price: decimal.NewFromInt(100), Status: domain.ProductInactive}); err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	active, err := repo.List(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Slug != "linen-kurta" {
		t.Fatalf("unexpected active list %+v", active)
	}
	all, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Colors) != 1 || got.Colors[0].Name != "Indigo" || len(got.Sizes) != 2 {
		t.Fatalf("variants not round-tripped: %+v", got)
	}
}

func TestPostgres_UpsertUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(testsupport.Postgres(ctx, t), zerolog.Nop())

	first, err := repo.Upsert(ctx, domain.Product{Slug: "tee", Name: "Tee", Price: decimal.NewFromInt(299), Status: domain.ProductActive})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, domain.Product{Slug: "tee", Name: "Tee v2", Price: decimal.NewFromInt(349), Status: domain.ProductActive})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if second.ID != first.ID || second.Name != "Tee v2" {
		t.Fatalf("expected in-place update, got %+v", second)
	}

	second.Stock = 5
	updated, err := repo.Update(ctx, second)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stock != 5 {
		t.Fatalf("stock not updated: %+v", updated)
	}

	if _, err := repo.Update(ctx, domain.Product{ID: "00000000-0000-0000-0000-000000000000", Slug: "x", Name: "x", Price: decimal.Zero, Status: domain.ProductActive}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
