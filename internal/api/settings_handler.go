package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// getSettings returns the effective settings
// GET /api/v1/settings
func (r *Router) getSettings(c *gin.Context) {
	s, err := r.settings.Load(c.Request.Context())
	if err != nil {
		r.respondError(c, err, "load settings")
		return
	}

	c.JSON(http.StatusOK, s)
}

// updateSettings applies a partial update of the global settings
// PUT /api/v1/settings
func (r *Router) updateSettings(c *gin.Context) {
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	s, err := r.settings.UpdateGlobal(c.Request.Context(), values)
	if err != nil {
		r.respondError(c, err, "update settings")
		return
	}

	c.JSON(http.StatusOK, s)
}

// setBundle replaces the settings of a subcategory in a context
// PUT /api/v1/settings/categories/:category/:subcategory?context=default
func (r *Router) setBundle(c *gin.Context) {
	var bundle settings.BundleSettings
	if err := c.ShouldBindJSON(&bundle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	err := r.settings.SetBundle(c.Request.Context(), c.Query("context"), c.Param("category"), c.Param("subcategory"), bundle)
	if err != nil {
		r.respondError(c, err, "update category settings")
		return
	}

	c.JSON(http.StatusOK, bundle)
}

// setItem stores a per-item override in a context
// PUT /api/v1/settings/categories/:category/:subcategory/items/:item?context=default
func (r *Router) setItem(c *gin.Context) {
	var item settings.ItemSettings
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	err := r.settings.SetItem(
		c.Request.Context(), c.Query("context"), c.Param("category"), c.Param("subcategory"), c.Param("item"), item,
	)
	if err != nil {
		r.respondError(c, err, "update item settings")
		return
	}

	c.JSON(http.StatusOK, item)
}

// listCustomLinks returns the configured custom links
// GET /api/v1/custom-links?context=default
func (r *Router) listCustomLinks(c *gin.Context) {
	s, err := r.settings.Load(c.Request.Context())
	if err != nil {
		r.respondError(c, err, "list custom links")
		return
	}

	links := s.CustomLinks
	if linkContext := c.Query("context"); linkContext != "" {
		links = s.CustomLinksFor(linkContext)
	}

	c.JSON(http.StatusOK, gin.H{
		"custom_links": links,
		"count":        len(links),
	})
}

// addCustomLink adds or replaces a custom link
// POST /api/v1/custom-links
func (r *Router) addCustomLink(c *gin.Context) {
	link := settings.CustomLink{Priority: settings.DefaultPriority}
	if err := c.ShouldBindJSON(&link); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	if err := r.settings.AddCustomLink(c.Request.Context(), link); err != nil {
		r.respondError(c, err, "add custom link")
		return
	}

	c.JSON(http.StatusCreated, link)
}

// removeCustomLink deletes a custom link
// DELETE /api/v1/custom-links?path=/about&context=default
func (r *Router) removeCustomLink(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	removed, err := r.settings.RemoveCustomLink(c.Request.Context(), path, c.Query("context"))
	if err != nil {
		r.respondError(c, err, "remove custom link")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Custom link not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
