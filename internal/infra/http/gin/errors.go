package ginserver

import (
	"context"
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/handlers/gueststay"
	"gueststay/internal/app/middleware"
	"gueststay/internal/domain/guests"
	"gueststay/internal/infra/validation"
)

func (h GuestStayHandler) handleError(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": verr.Fields})
		return
	}
	var violation *guests.RuleViolation
	if errors.As(err, &violation) {
		c.JSON(http.StatusForbidden, gin.H{"error": violation.Reason})
		return
	}
	switch {
	case errors.Is(err, middleware.ErrValidation),
		errors.Is(err, gueststay.ErrInvalidInput):
		h.respondWithError(c, http.StatusBadRequest, err)
	case errors.Is(err, gueststay.ErrStayNotFound):
		h.respondWithError(c, http.StatusNotFound, err)
	case errors.Is(err, eventsourcing.ErrExpectedVersionMismatch):
		h.respondWithError(c, http.StatusPreconditionFailed, err)
	case errors.Is(err, middleware.ErrIdempotencyKeyReused):
		h.respondWithError(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, eventsourcing.ErrConflict),
		errors.Is(err, middleware.ErrIdempotencyInProgress):
		h.respondWithError(c, http.StatusConflict, err)
	case errors.Is(err, gueststay.ErrFolioUnavailable):
		h.respondWithError(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondWithError(c, http.StatusGatewayTimeout, err)
	default:
		h.respondWithError(c, http.StatusInternalServerError, err)
	}
}

func (h GuestStayHandler) respondWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	if h.Logger != nil && status >= http.StatusInternalServerError {
		h.Logger.Error("guest stay request failed", "status", status, "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id"))
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg})
}
