package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/binsarkiel/chatto/internal/services"
)

// respondError maps service errors onto HTTP statuses. Unknown errors come
// back as a generic 500 so store internals never leak to the caller.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrSelfChat),
		errors.Is(err, services.ErrNotAGroup),
		errors.Is(err, services.ErrLastAdmin):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotAMember):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrConversationNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrAlreadyMember):
		status, message = http.StatusConflict, err.Error()
	default:
		logger.Error("request failed", "error", err, "path", c.FullPath())
	}

	c.JSON(status, gin.H{"message": message})
}
