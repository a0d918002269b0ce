package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"dispatch/internal/domain"
	"dispatch/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP statuses. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, fallback *slog.Logger, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		logger.FromContext(c.Request.Context(), fallback).Error(msg, logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
