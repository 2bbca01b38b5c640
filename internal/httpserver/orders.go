package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	ordersvc "storefront/internal/service/order"
)

type orderHandler struct {
	orders orderService
}

type orderAccepted struct {
	ID        string             `json:"id"`
	Status    domain.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func actorOf(c *gin.Context) ordersvc.Actor {
	customer, _ := currentCustomer(c)
	return ordersvc.Actor{UserID: customer.ID, Admin: customer.IsAdmin()}
}

func (h *orderHandler) create(c *gin.Context) {
	var payload domain.OrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	customer, _ := currentCustomer(c)
	order, err := h.orders.Create(c.Request.Context(), customer.ID, payload)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, orderAccepted{ID: order.ID, Status: order.Status, CreatedAt: order.CreatedAt})
}

func (h *orderHandler) listMine(c *gin.Context) {
	orders, err := h.orders.ListForUser(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, nonNilOrders(orders))
}

func (h *orderHandler) get(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *orderHandler) listAll(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, nonNilOrders(orders))
}

func (h *orderHandler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *orderHandler) remove(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func nonNilOrders(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}
