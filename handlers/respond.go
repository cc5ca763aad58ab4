package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum/services"
	"momentum/utils"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, handler string, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidIndex), errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, please retry"})
	default:
		utils.ErrorCount.WithLabelValues(handler, "internal").Inc()
		logger.Error("handler_error", zap.String("handler", handler), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
