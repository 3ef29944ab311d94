// Package api exposes published sitemaps and the generation admin API over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/sitemap/infrastructure/gin"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// Generator is the generation surface used by the handlers.
type Generator interface {
	StartGeneration(ctx context.Context, mode domain.Mode) (*generator.Progress, error)
	Step(ctx context.Context) (*generator.Progress, error)
	Cancel(ctx context.Context) error
	Progress(ctx context.Context) (*generator.Progress, error)
	GetSitemap(ctx context.Context, sitemapContext string, deltaIndex int) ([]byte, error)
	GetGeneratedAgo(ctx context.Context, sitemapContext string) (time.Duration, error)
}

// SettingsManager reads and updates persisted settings.
type SettingsManager interface {
	Load(ctx context.Context) (*settings.Settings, error)
	UpdateGlobal(ctx context.Context, values map[string]any) (*settings.Settings, error)
	SetBundle(ctx context.Context, sitemapContext, category, subcategory string, b settings.BundleSettings) error
	SetItem(ctx context.Context, sitemapContext, category, subcategory, itemID string, item settings.ItemSettings) error
	AddCustomLink(ctx context.Context, link settings.CustomLink) error
	RemoveCustomLink(ctx context.Context, path, linkContext string) (bool, error)
}

// Router holds the API dependencies.
type Router struct {
	generator Generator
	settings  SettingsManager
	jwtSecret string
	log       logger.Logger
	now       func() time.Time

	eventStream gin.HandlerFunc
}

// NewRouter creates a new API router. An empty jwtSecret leaves the admin API unauthenticated.
func NewRouter(gen Generator, sm SettingsManager, jwtSecret string, log logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{
		generator: gen,
		settings:  sm,
		jwtSecret: jwtSecret,
		log:       log,
		now:       time.Now,
	}
}

// WithEventStream serves run events at GET /api/v1/generate/events.
func (r *Router) WithEventStream(h gin.HandlerFunc) *Router {
	r.eventStream = h
	return r
}

// SetupRoutes registers the public sitemap routes and the admin API.
func (r *Router) SetupRoutes(router *gin.Engine) {
	router.GET("/sitemap.xml", r.getDefaultSitemap)
	router.GET(generator.SitemapsPath+"/:context", r.getContextSitemap)
	router.GET(generator.SitemapsPath+"/:context/:delta", r.getDeltaSitemap)

	v1 := infragin.ProtectedGroup(router, "/api/v1", r.jwtSecret)

	gen := v1.Group("/generate")
	gen.POST("", r.startGeneration)
	gen.POST("/step", r.stepGeneration)
	gen.GET("/progress", r.getProgress)
	gen.DELETE("", r.cancelGeneration)
	if r.eventStream != nil {
		gen.GET("/events", r.eventStream)
	}

	v1.GET("/sitemaps/:context/status", r.getSitemapStatus)

	cfg := v1.Group("/settings")
	cfg.GET("", r.getSettings)
	cfg.PUT("", r.updateSettings)
	cfg.PUT("/categories/:category/:subcategory", r.setBundle)
	cfg.PUT("/categories/:category/:subcategory/items/:item", r.setItem)

	links := v1.Group("/custom-links")
	links.GET("", r.listCustomLinks)
	links.POST("", r.addCustomLink)
	links.DELETE("", r.removeCustomLink)
}
