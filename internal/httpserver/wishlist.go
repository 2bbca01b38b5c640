package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type wishlistHandler struct {
	wishlist wishlistService
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

func (h *wishlistHandler) list(c *gin.Context) {
	customer, _ := currentCustomer(c)
	entries, err := h.wishlist.List(c.Request.Context(), customer.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.WishlistEntry{}
	}
	respond(c, http.StatusOK, entries)
}

func (h *wishlistHandler) add(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	customer, _ := currentCustomer(c)
	entry, err := h.wishlist.Add(c.Request.Context(), customer.ID, req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, entry)
}

func (h *wishlistHandler) remove(c *gin.Context) {
	customer, _ := currentCustomer(c)
	if err := h.wishlist.Remove(c.Request.Context(), customer.ID, c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// clear answers 200 with the per-item outcome, or 207 when some entries
// could not be removed.
func (h *wishlistHandler) clear(c *gin.Context) {
	customer, _ := currentCustomer(c)
	result, err := h.wishlist.Clear(c.Request.Context(), customer.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	respond(c, status, result)
}
