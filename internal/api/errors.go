package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/dealscout/internal/ledger"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/scout"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, negotiation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, listing.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, scout.ErrNoListings):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
