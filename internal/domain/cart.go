package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product variant and quantity in a cart or an order.
type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Size      string          `json:"size,omitempty"`
	Color     *Color          `json:"color,omitempty"`
}

// LineKey identifies a cart line; two lines with the same key are merged.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// Key returns the merge key of the line.
func (li LineItem) Key() LineKey {
	return NewLineKey(li.ProductID, li.Size, li.Color)
}

// NewLineKey normalizes the variant parts so keys compare regardless of case
// or surrounding whitespace.
func NewLineKey(productID, size string, color *Color) LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(productID),
		Size:      strings.ToLower(strings.TrimSpace(size)),
		Color:     color.Identity(),
	}
}

// CartSnapshot is the deduplicated, insertion ordered content of one cart.
type CartSnapshot struct {
	Items []LineItem `json:"items"`
}

// IsEmpty reports whether the cart has no lines.
func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the index of the line with the given key or -1.
func (s CartSnapshot) Find(key LineKey) int {
	for i, item := range s.Items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s CartSnapshot) Clone() CartSnapshot {
	out := CartSnapshot{Items: make([]LineItem, 0, len(s.Items))}
	for _, item := range s.Items {
		if item.Color != nil {
			c := *item.Color
			item.Color = &c
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// StoredCart is the persisted form of a cart profile.
type StoredCart struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
