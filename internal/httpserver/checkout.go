package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutsvc "storefront/internal/service/checkout"
)

type checkoutHandler struct {
	checkout checkoutService
}

type checkoutRequest struct {
	ShippingAddress checkoutsvc.AddressForm `json:"shippingAddress"`
	PaymentMethod   string                  `json:"paymentMethod"`
}

func (h *checkoutHandler) submit(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	customer, _ := currentCustomer(c)
	confirmation, err := h.checkout.Submit(c.Request.Context(), c.Param("cartId"), customer.ID, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, confirmation)
}
