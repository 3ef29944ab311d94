package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const xmlContentType = "application/xml; charset=utf-8"

// getDefaultSitemap serves the document of the first configured context
// GET /sitemap.xml
func (r *Router) getDefaultSitemap(c *gin.Context) {
	s, err := r.settings.Load(c.Request.Context())
	if err != nil {
		r.respondError(c, err, "load settings")
		return
	}
	r.serveSitemap(c, s.Contexts[0], 0)
}

// getContextSitemap serves the document of a context
// GET /sitemaps/:context
func (r *Router) getContextSitemap(c *gin.Context) {
	r.serveSitemap(c, trimXML(c.Param("context")), 0)
}

// getDeltaSitemap serves one delta of a context
// GET /sitemaps/:context/:delta
func (r *Router) getDeltaSitemap(c *gin.Context) {
	deltaIndex, err := strconv.Atoi(trimXML(c.Param("delta")))
	if err != nil || deltaIndex < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delta index"})
		return
	}
	r.serveSitemap(c, c.Param("context"), deltaIndex)
}

func (r *Router) serveSitemap(c *gin.Context, sitemapContext string, deltaIndex int) {
	payload, err := r.generator.GetSitemap(c.Request.Context(), sitemapContext, deltaIndex)
	if err != nil {
		r.respondError(c, err, "get sitemap")
		return
	}

	c.Header("X-Robots-Tag", "noindex, follow")
	c.Data(http.StatusOK, xmlContentType, payload)
}

func trimXML(segment string) string {
	return strings.TrimSuffix(segment, ".xml")
}

// getSitemapStatus reports when a context was last generated
// GET /api/v1/sitemaps/:context/status
func (r *Router) getSitemapStatus(c *gin.Context) {
	sitemapContext := c.Param("context")

	ago, err := r.generator.GetGeneratedAgo(c.Request.Context(), sitemapContext)
	if err != nil {
		r.respondError(c, err, "get sitemap status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"context":               sitemapContext,
		"generated_at":          r.now().Add(-ago).UTC(),
		"generated_ago_seconds": int64(ago.Seconds()),
	})
}
