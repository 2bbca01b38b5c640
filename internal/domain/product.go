package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus controls catalog visibility.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

type Product struct {
	ID            string           `json:"id"`
	Slug          string           `json:"slug"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Stock         int              `json:"stock"`
	Category      string           `json:"category"`
	Status        ProductStatus    `json:"status"`
	Sizes         []string         `json:"sizes"`
	Colors        []Color          `json:"colors"`
	Image         string           `json:"image,omitempty"`
	Rating        float64          `json:"rating"`
	Reviews       int              `json:"reviews"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// IsActive reports whether the product can be priced and sold.
func (p Product) IsActive() bool {
	return p.Status == "" || p.Status == ProductActive
}

// ResolveColor finds the catalog variant matching a name or a code.
func (p Product) ResolveColor(raw string) (Color, bool) {
	for _, c := range p.Colors {
		if c.Matches(raw) {
			return c, true
		}
	}
	return Color{}, false
}

// ResolveSize returns the product's spelling of size, matched without
// regard to case. Products without sizes accept only the empty size.
func (p Product) ResolveSize(size string) (string, bool) {
	size = strings.TrimSpace(size)
	if len(p.Sizes) == 0 {
		return "", size == ""
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(s, size) {
			return s, true
		}
	}
	return "", false
}
