// Package pricing turns a cart snapshot and a catalog into totals. It holds
// no state; the same inputs always give the same Breakdown.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var (
	// FreeShippingThreshold is the largest subtotal that still pays shipping.
	FreeShippingThreshold = decimal.NewFromInt(999)
	// ShippingFee is charged while the subtotal is at or below the threshold.
	ShippingFee = decimal.NewFromInt(69)
	// PlatformFee is charged on every order.
	PlatformFee = decimal.NewFromInt(10)
)

// Lookup resolves a product id against a catalog snapshot.
type Lookup func(productID string) (domain.Product, bool)

// Line is one priced cart line.
type Line struct {
	Item       domain.LineItem `json:"item"`
	Product    *domain.Product `json:"product,omitempty"`
	Resolvable bool            `json:"resolvable"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// Breakdown is derived on every read and never persisted.
type Breakdown struct {
	Lines                    []Line          `json:"lines"`
	ItemCount                int             `json:"itemCount"`
	Subtotal                 decimal.Decimal `json:"subtotal"`
	Shipping                 decimal.Decimal `json:"shipping"`
	PlatformFee              decimal.Decimal `json:"platformFee"`
	Total                    decimal.Decimal `json:"total"`
	RemainingForFreeShipping decimal.Decimal `json:"remainingForFreeShipping"`
}

// Price re-prices every line at the catalog's current price. Lines whose
// product cannot be resolved stay in the result flagged unresolvable and add
// nothing to the subtotal.
func Price(snapshot domain.CartSnapshot, lookup Lookup) Breakdown {
	out := Breakdown{
		Lines:       make([]Line, 0, len(snapshot.Items)),
		Subtotal:    decimal.Zero,
		PlatformFee: PlatformFee,
	}
	for _, item := range snapshot.Items {
		line := Line{Item: item, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		if lookup != nil {
			if p, ok := lookup(item.ProductID); ok {
				product := p
				line.Product = &product
				line.Resolvable = true
				line.UnitPrice = p.Price
				line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
				line.Item.Color = displayColor(item.Color, product)
			}
		}
		out.ItemCount += item.Quantity
		out.Subtotal = out.Subtotal.Add(line.LineTotal)
		out.Lines = append(out.Lines, line)
	}
	out.Shipping = Shipping(out.Subtotal)
	out.Total = out.Subtotal.Add(out.Shipping).Add(out.PlatformFee)
	out.RemainingForFreeShipping = RemainingForFreeShipping(out.Subtotal)
	return out
}

// Shipping applies the flat rule: free strictly above the threshold.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return ShippingFee
}

// RemainingForFreeShipping is how much more must be spent to ship free.
func RemainingForFreeShipping(subtotal decimal.Decimal) decimal.Decimal {
	remaining := FreeShippingThreshold.Add(decimal.NewFromInt(1)).Sub(subtotal)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// UnresolvableIDs lists the product ids of lines the catalog did not know.
func (b Breakdown) UnresolvableIDs() []string {
	var ids []string
	for _, l := range b.Lines {
		if !l.Resolvable {
			ids = append(ids, l.Item.ProductID)
		}
	}
	return ids
}

// displayColor fills in the missing half of a legacy color from the product's
// variants. The stored line is not modified.
func displayColor(c *domain.Color, p domain.Product) *domain.Color {
	if c == nil || (c.Name != "" && c.Code != "") {
		return c
	}
	raw := c.Name
	if raw == "" {
		raw = c.Code
	}
	if full, ok := p.ResolveColor(raw); ok {
		return &full
	}
	return c
}
