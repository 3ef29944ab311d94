package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
)

// startGeneration starts a new run, discarding any in-flight run
// POST /api/v1/generate?mode=interactive
func (r *Router) startGeneration(c *gin.Context) {
	mode, err := domain.ParseMode(c.Query("mode"))
	if err != nil {
		r.respondError(c, err, "start sitemap generation")
		return
	}

	progress, err := r.generator.StartGeneration(c.Request.Context(), mode)
	if err != nil {
		r.respondError(c, err, "start sitemap generation")
		return
	}

	c.JSON(statusFor(progress), progress)
}

// stepGeneration advances the in-flight run
// POST /api/v1/generate/step
func (r *Router) stepGeneration(c *gin.Context) {
	progress, err := r.generator.Step(c.Request.Context())
	if err != nil {
		r.respondError(c, err, "advance sitemap generation")
		return
	}

	c.JSON(statusFor(progress), progress)
}

// getProgress reports the in-flight run
// GET /api/v1/generate/progress
func (r *Router) getProgress(c *gin.Context) {
	progress, err := r.generator.Progress(c.Request.Context())
	if err != nil {
		r.respondError(c, err, "get generation progress")
		return
	}

	c.JSON(http.StatusOK, progress)
}

// cancelGeneration discards the in-flight run
// DELETE /api/v1/generate
func (r *Router) cancelGeneration(c *gin.Context) {
	if err := r.generator.Cancel(c.Request.Context()); err != nil {
		r.respondError(c, err, "cancel sitemap generation")
		return
	}

	c.Status(http.StatusNoContent)
}

// statusFor is 200 for a finished run and 202 while work remains.
func statusFor(progress *generator.Progress) int {
	if progress.Finished {
		return http.StatusOK
	}
	return http.StatusAccepted
}
