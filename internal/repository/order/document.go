package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// Money is stored as decimal strings so no precision is lost in BSON or JSON.
type orderDocument struct {
	ID              string          `bson:"_id" json:"id"`
	UserID          string          `bson:"userId" json:"userId"`
	Items           []lineDocument  `bson:"items" json:"items"`
	Subtotal        string          `bson:"subtotal" json:"subtotal"`
	Shipping        string          `bson:"shipping" json:"shipping"`
	PlatformFee     string          `bson:"platformFee" json:"platformFee"`
	Total           string          `bson:"total" json:"total"`
	ShippingAddress addressDocument `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string          `bson:"paymentMethod" json:"paymentMethod"`
	Status          string          `bson:"status" json:"status"`
	CreatedAt       time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updatedAt" json:"updatedAt"`
}

type lineDocument struct {
	ProductID string         `bson:"productId" json:"productId"`
	Quantity  int            `bson:"quantity" json:"quantity"`
	UnitPrice string         `bson:"unitPrice" json:"unitPrice"`
	Size      string         `bson:"size,omitempty" json:"size,omitempty"`
	Color     *colorDocument `bson:"color,omitempty" json:"color,omitempty"`
}

type colorDocument struct {
	Name string `bson:"name,omitempty" json:"name,omitempty"`
	Code string `bson:"code,omitempty" json:"code,omitempty"`
}

type addressDocument struct {
	Email         string `bson:"email" json:"email"`
	FirstName     string `bson:"firstName" json:"firstName"`
	LastName      string `bson:"lastName" json:"lastName"`
	StreetAddress string `bson:"streetAddress" json:"streetAddress"`
	Apartment     string `bson:"apartment,omitempty" json:"apartment,omitempty"`
	City          string `bson:"city" json:"city"`
	State         string `bson:"state" json:"state"`
	PostalCode    string `bson:"postalCode" json:"postalCode"`
	Country       string `bson:"country,omitempty" json:"country,omitempty"`
	Phone         string `bson:"phone" json:"phone"`
}

func toDocument(o domain.Order) orderDocument {
	items := make([]lineDocument, 0, len(o.Items))
	for _, it := range o.Items {
		line := lineDocument{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
			Size:      it.Size,
		}
		if it.Color != nil {
			line.Color = &colorDocument{Name: it.Color.Name, Code: it.Color.Code}
		}
		items = append(items, line)
	}
	a := o.ShippingAddress
	return orderDocument{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		Subtotal:    o.Subtotal.String(),
		Shipping:    o.Shipping.String(),
		PlatformFee: o.PlatformFee.String(),
		Total:       o.Total.String(),
		ShippingAddress: addressDocument{
			Email:         a.Email,
			FirstName:     a.FirstName,
			LastName:      a.LastName,
			StreetAddress: a.StreetAddress,
			Apartment:     a.Apartment,
			City:          a.City,
			State:         a.State,
			PostalCode:    a.PostalCode,
			Country:       a.Country,
			Phone:         a.Phone,
		},
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt.UTC(),
		UpdatedAt:     o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain() (domain.Order, error) {
	amounts := make([]decimal.Decimal, 4)
	for i, raw := range []string{d.Subtotal, d.Shipping, d.PlatformFee, d.Total} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: decode amount %q: %w", d.ID, raw, err)
		}
		amounts[i] = v
	}
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, l := range d.Items {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: decode unit price %q: %w", d.ID, l.UnitPrice, err)
		}
		item := domain.LineItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price, Size: l.Size}
		if l.Color != nil {
			item.Color = &domain.Color{Name: l.Color.Name, Code: l.Color.Code}
		}
		items = append(items, item)
	}
	a := d.ShippingAddress
	return domain.Order{
		ID:          d.ID,
		UserID:      d.UserID,
		Items:       items,
		Subtotal:    amounts[0],
		Shipping:    amounts[1],
		PlatformFee: amounts[2],
		Total:       amounts[3],
		ShippingAddress: domain.ShippingAddress{
			Email:         a.Email,
			FirstName:     a.FirstName,
			LastName:      a.LastName,
			StreetAddress: a.StreetAddress,
			Apartment:     a.Apartment,
			City:          a.City,
			State:         a.State,
			PostalCode:    a.PostalCode,
			Country:       a.Country,
			Phone:         a.Phone,
		},
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		Status:        domain.OrderStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func decodeAll(docs []orderDocument) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
