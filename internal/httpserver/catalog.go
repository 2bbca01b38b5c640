package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	productsvc "storefront/internal/service/product"
)

type catalogHandler struct {
	products   productService
	categories categoryService
}

func paymentMethodsHandler(c *gin.Context) {
	respond(c, http.StatusOK, domain.PaymentOptions())
}

func (h *catalogHandler) list(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("activeOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "activeOnly", "must be true or false")
			return
		}
		activeOnly = v
	}
	products, err := h.products.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, products)
}

func (h *catalogHandler) get(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *catalogHandler) listCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respond(c, http.StatusOK, categories)
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

func (h *catalogHandler) upsertCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name", "is required")
		return
	}
	category, err := h.categories.Upsert(c.Request.Context(), domain.Category{
		Key:  c.Param("key"),
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, category)
}

func (h *catalogHandler) create(c *gin.Context) {
	var in productsvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	product, err := h.products.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, product)
}

func (h *catalogHandler) update(c *gin.Context) {
	var in productsvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	product, err := h.products.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *catalogHandler) remove(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
