package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/pkg/logger"
)

// statusFor maps a core error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, model.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, l *zap.Logger, op string, err error) {
	code := statusFor(err)
	log := logger.WithTrace(c.Request.Context(), l)
	if code >= http.StatusInternalServerError {
		log.Error(op+": failed", zap.Int("status", code), zap.Error(err))
	} else {
		log.Warn(op+": rejected", zap.Int("status", code), zap.Error(err))
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
