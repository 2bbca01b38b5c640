package httpserver

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
)

const (
	requestIDHeader = "X-Request-Id"
	customerKey     = "customer"
	tokenKey        = "token"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func observe(m httpMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// requireAuth resolves the bearer token to a customer.
func requireAuth(customers customerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || customers == nil {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		customer, err := customers.LookupByToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(customerKey, customer)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, ok := currentCustomer(c)
		if !ok {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		if !customer.IsAdmin() {
			writeError(c, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentCustomer(c *gin.Context) (domain.Customer, bool) {
	v, ok := c.Get(customerKey)
	if !ok {
		return domain.Customer{}, false
	}
	customer, ok := v.(domain.Customer)
	return customer, ok
}
