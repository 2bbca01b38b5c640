package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	"storefront/internal/pricing"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/storefront"
)

type cartHandler struct {
	carts     cartService
	summaries summaryService
	products  productService
	events    broadcast.Subscriber
	poll      time.Duration
	keepAlive time.Duration
	logger    zerolog.Logger
}

type lineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type lineView struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name,omitempty"`
	Image      string          `json:"image,omitempty"`
	Size       string          `json:"size,omitempty"`
	Color      *domain.Color   `json:"color,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
	Resolvable bool            `json:"resolvable"`
}

type totalsView struct {
	ItemCount                int             `json:"itemCount"`
	Subtotal                 decimal.Decimal `json:"subtotal"`
	Shipping                 decimal.Decimal `json:"shipping"`
	PlatformFee              decimal.Decimal `json:"platformFee"`
	Total                    decimal.Decimal `json:"total"`
	RemainingForFreeShipping decimal.Decimal `json:"remainingForFreeShipping"`
	FreeShipping             bool            `json:"freeShipping"`
}

// cartView.Recovered is set when stored data was unusable and the cart was
// reset to empty.
type cartView struct {
	CartID    string     `json:"cartId"`
	Items     []lineView `json:"items"`
	Totals    totalsView `json:"totals"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Recovered bool       `json:"recovered,omitempty"`
}

type checkoutView struct {
	cartView
	PaymentMethods []domain.PaymentOption `json:"paymentMethods"`
}

func toTotalsView(b pricing.Breakdown) totalsView {
	return totalsView{
		ItemCount:                b.ItemCount,
		Subtotal:                 b.Subtotal,
		Shipping:                 b.Shipping,
		PlatformFee:              b.PlatformFee,
		Total:                    b.Total,
		RemainingForFreeShipping: b.RemainingForFreeShipping,
		FreeShipping:             b.Shipping.IsZero(),
	}
}

func toCartView(s storefront.Summary) cartView {
	items := make([]lineView, 0, len(s.Breakdown.Lines))
	for _, l := range s.Breakdown.Lines {
		v := lineView{
			ProductID:  l.Item.ProductID,
			Size:       l.Item.Size,
			Color:      l.Item.Color,
			Quantity:   l.Item.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  l.LineTotal,
			Resolvable: l.Resolvable,
		}
		if l.Product != nil {
			v.Name = l.Product.Name
			v.Image = l.Product.Image
		}
		items = append(items, v)
	}
	return cartView{
		CartID:    s.CartID,
		Items:     items,
		Totals:    toTotalsView(s.Breakdown),
		UpdatedAt: s.CartUpdatedAt,
		Recovered: errors.Is(s.Anomaly, cartsvc.ErrMalformedCart),
	}
}

func (h *cartHandler) create(c *gin.Context) {
	respond(c, http.StatusCreated, gin.H{"cartId": cartsvc.NewID()})
}

func (h *cartHandler) render(c *gin.Context) (storefront.Summary, bool) {
	s, err := h.summaries.Summarize(c.Request.Context(), c.Param("cartId"))
	if err != nil {
		writeError(c, err)
		return storefront.Summary{}, false
	}
	return s, true
}

func (h *cartHandler) view(c *gin.Context) {
	if s, ok := h.render(c); ok {
		respond(c, http.StatusOK, toCartView(s))
	}
}

func (h *cartHandler) summary(c *gin.Context) {
	if s, ok := h.render(c); ok {
		respond(c, http.StatusOK, toTotalsView(s.Breakdown))
	}
}

func (h *cartHandler) checkoutView(c *gin.Context) {
	if s, ok := h.render(c); ok {
		respond(c, http.StatusOK, checkoutView{cartView: toCartView(s), PaymentMethods: domain.PaymentOptions()})
	}
}

func (h *cartHandler) addItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		badRequest(c, "productId", "is required")
		return
	}
	ctx := c.Request.Context()
	product, err := h.products.Get(ctx, strings.TrimSpace(req.ProductID))
	if err != nil {
		writeError(c, err)
		return
	}
	if !product.IsActive() {
		writeError(c, domain.ErrNotFound)
		return
	}

	verr := &domain.ValidationError{}
	size, ok := product.ResolveSize(req.Size)
	if !ok {
		verr.Add("size", "is not offered for this product")
	}
	var color *domain.Color
	switch {
	case strings.TrimSpace(req.Color) != "":
		resolved, ok := product.ResolveColor(req.Color)
		if !ok {
			verr.Add("color", "is not offered for this product")
		} else {
			color = &resolved
		}
	case len(product.Colors) > 0:
		verr.Add("color", "is required")
	}
	if verr.HasErrors() {
		writeError(c, verr)
		return
	}

	if _, err := h.carts.Add(ctx, c.Param("cartId"), cartsvc.AddInput{
		ProductID: product.ID,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
		Size:      size,
		Color:     color,
	}); err != nil {
		writeError(c, err)
		return
	}
	h.view(c)
}

// lineKey resolves the color through the catalog so a code and a name of the
// same variant address the same line.
func (h *cartHandler) lineKey(ctx context.Context, productID, size, rawColor string) domain.LineKey {
	color := domain.ParseColor(rawColor)
	if color != nil {
		if p, err := h.products.Get(ctx, productID); err == nil {
			if resolved, ok := p.ResolveColor(rawColor); ok {
				color = &resolved
			}
		}
	}
	return domain.NewLineKey(productID, size, color)
}

func (h *cartHandler) updateItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		badRequest(c, "productId", "is required")
		return
	}
	ctx := c.Request.Context()
	key := h.lineKey(ctx, req.ProductID, req.Size, req.Color)
	if _, err := h.carts.UpdateQuantity(ctx, c.Param("cartId"), key, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	h.view(c)
}

func (h *cartHandler) removeItem(c *gin.Context) {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" {
		badRequest(c, "productId", "is required")
		return
	}
	ctx := c.Request.Context()
	key := h.lineKey(ctx, productID, c.Query("size"), c.Query("color"))
	if _, err := h.carts.Remove(ctx, c.Param("cartId"), key); err != nil {
		writeError(c, err)
		return
	}
	h.view(c)
}

func (h *cartHandler) clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), c.Param("cartId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// streamEvents streams the cart view whenever it changes. The stream is one more
// browsing context: it refreshes on notifications and on the poll interval.
func (h *cartHandler) streamEvents(c *gin.Context) {
	cartID := c.Param("cartId")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := make(chan cartView, 1)
	session := storefront.NewSession(cartID, h.summaries,
		storefront.WithSessionLogger(h.logger),
		storefront.OnChange(func(s storefront.Summary) {
			v := toCartView(s)
			select {
			case updates <- v:
			default:
				// Keep only the newest view for a slow client.
				select {
				case <-updates:
				default:
				}
				select {
				case updates <- v:
				default:
				}
			}
		}),
	)
	go func() {
		if err := session.Watch(ctx, h.events, h.poll); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn().Err(err).Str("cart_id", cartID).Msg("cart event watch stopped")
		}
	}()

	keepAlive := h.keepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	var last []byte
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v := <-updates:
			encoded, err := json.Marshal(v)
			if err != nil || bytes.Equal(encoded, last) {
				return true
			}
			last = encoded
			c.SSEvent("cart", json.RawMessage(encoded))
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
