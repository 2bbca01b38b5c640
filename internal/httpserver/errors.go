package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/logger"
	customersvc "storefront/internal/service/customer"
)

type errorCode string

const (
	codeValidation    errorCode = "VALIDATION_ERROR"
	codeUnauthorized  errorCode = "UNAUTHORIZED"
	codeForbidden     errorCode = "FORBIDDEN"
	codeNotFound      errorCode = "NOT_FOUND"
	codeConflict      errorCode = "CONFLICT"
	codeStateConflict errorCode = "STATE_CONFLICT"
	codeUnavailable   errorCode = "UNAVAILABLE"
	codeInternal      errorCode = "INTERNAL"
)

type codeMetadata struct {
	status        int
	publicMessage string
	// exposeMessage lets the error's own text reach the client.
	exposeMessage bool
}

var codeTable = map[errorCode]codeMetadata{
	codeValidation:    {http.StatusBadRequest, "validation failed", true},
	codeUnauthorized:  {http.StatusUnauthorized, "authentication required", false},
	codeForbidden:     {http.StatusForbidden, "not allowed", false},
	codeNotFound:      {http.StatusNotFound, "not found", false},
	codeConflict:      {http.StatusConflict, "already exists", false},
	codeStateConflict: {http.StatusUnprocessableEntity, "state transition not allowed", true},
	codeUnavailable:   {http.StatusServiceUnavailable, "temporarily unavailable, please retry", false},
	codeInternal:      {http.StatusInternalServerError, "internal error", false},
}

type apiError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type successEnvelope struct {
	Data any `json:"data"`
}

func classify(err error) errorCode {
	if _, ok := domain.AsValidation(err); ok {
		return codeValidation
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, customersvc.ErrInvalidCredentials),
		errors.Is(err, customersvc.ErrInvalidToken):
		return codeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return codeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return codeNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return codeConflict
	case errors.Is(err, domain.ErrStateConflict):
		return codeStateConflict
	case errors.Is(err, domain.ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return codeUnavailable
	}
	return codeInternal
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, successEnvelope{Data: data})
}

func writeError(c *gin.Context, err error) {
	code := classify(err)
	meta := codeTable[code]

	payload := apiError{Code: string(code), Message: meta.publicMessage}
	if meta.exposeMessage {
		payload.Message = err.Error()
	}
	if ve, ok := domain.AsValidation(err); ok {
		payload.Message = meta.publicMessage
		payload.Fields = ve.Fields
	}

	log := logger.FromContext(c.Request.Context(), logger.Nop())
	if meta.status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("error_code", string(code)).Msg("request.error")
	} else {
		log.Debug().Err(err).Str("error_code", string(code)).Msg("request.rejected")
	}

	c.AbortWithStatusJSON(meta.status, errorEnvelope{Error: payload})
}

func badRequest(c *gin.Context, field, message string) {
	writeError(c, domain.NewValidationError(domain.FieldError{Field: field, Message: message}))
}
