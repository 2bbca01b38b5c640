package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

type authHandler struct {
	customers customerService
}

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type customerView struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

type sessionView struct {
	Customer    customerView `json:"customer"`
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresIn   int          `json:"expiresIn"`
}

func toCustomerView(c domain.Customer) customerView {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return customerView{
		ID:        c.ID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Role:      c.Role,
		CreatedAt: created,
	}
}

func (h *authHandler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	customer, err := h.customers.Signup(c.Request.Context(), customersvc.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, toCustomerView(customer))
}

func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "email and password are required")
		return
	}
	customer, token, err := h.customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, sessionView{
		Customer:    toCustomerView(customer),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.customers.AccessTTLSeconds(),
	})
}

func (h *authHandler) logout(c *gin.Context) {
	if err := h.customers.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *authHandler) me(c *gin.Context) {
	customer, _ := currentCustomer(c)
	respond(c, http.StatusOK, toCustomerView(customer))
}
