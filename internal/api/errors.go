package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	infraconfig "github.com/jonesrussell/north-cloud/sitemap/infrastructure/config"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// respondError maps service errors onto HTTP statuses.
func (r *Router) respondError(c *gin.Context, err error, operation string) {
	var validationErr *infraconfig.ValidationError
	log := logger.FromContext(c.Request.Context(), r.log)

	switch {
	case errors.Is(err, settings.ErrInvalid), errors.Is(err, domain.ErrInvalidMode):
		body := gin.H{"error": err.Error()}
		if errors.As(err, &validationErr) {
			body["field"] = validationErr.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, generator.ErrNoRun):
		c.JSON(http.StatusNotFound, gin.H{"error": "No sitemap generation in progress"})
	case errors.Is(err, generator.ErrSitemapNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Sitemap not found"})
	case errors.Is(err, generator.ErrRunLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Sitemap generation is already running"})
	case errors.Is(err, generator.ErrStoreUnavailable), errors.Is(err, generator.ErrFlushFailed):
		log.Warn("Sitemap generation interrupted", logger.String("operation", operation), logger.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to " + operation + "; progress was saved and the next invocation retries",
			"details": err.Error(),
		})
	default:
		log.Error("Request failed", logger.String("operation", operation), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + operation})
	}
}
