package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/sitemapxml"
)

// SitemapsPath is the URL path under the base URL where context sitemaps are served.
const SitemapsPath = "/sitemaps"

// GetSitemap returns a published document. With deltaIndex > 0 the delta itself is
// returned; an unknown index falls back to the context document. The context document
// is the only delta when there is one, otherwise a sitemapindex over all deltas.
func (g *Generator) GetSitemap(ctx context.Context, sitemapContext string, deltaIndex int) ([]byte, error) {
	if deltaIndex > 0 {
		delta, getErr := g.deltas.GetPublished(ctx, sitemapContext, deltaIndex)
		switch {
		case getErr == nil:
			return delta.Payload, nil
		case !errors.Is(getErr, domain.ErrNotFound):
			return nil, fmt.Errorf("get delta %d of %s: %w", deltaIndex, sitemapContext, getErr)
		}
	}

	deltas, listErr := g.deltas.ListPublished(ctx, sitemapContext)
	if listErr != nil {
		return nil, fmt.Errorf("list deltas of %s: %w", sitemapContext, listErr)
	}

	switch len(deltas) {
	case 0:
		return nil, ErrSitemapNotFound
	case 1:
		delta, getErr := g.deltas.GetPublished(ctx, sitemapContext, deltas[0].DeltaIndex)
		if errors.Is(getErr, domain.ErrNotFound) {
			return nil, ErrSitemapNotFound
		}
		if getErr != nil {
			return nil, fmt.Errorf("get delta of %s: %w", sitemapContext, getErr)
		}
		return delta.Payload, nil
	}

	s, loadErr := g.settings.Load(ctx)
	if loadErr != nil {
		return nil, fmt.Errorf("load settings: %w", loadErr)
	}

	base := s.BaseURL + SitemapsPath
	entries := make([]sitemapxml.IndexEntry, 0, len(deltas))
	for _, d := range deltas {
		entries = append(entries, sitemapxml.IndexEntry{
			Loc:     sitemapxml.DeltaURL(base, sitemapContext, d.DeltaIndex),
			LastMod: d.CreatedAt,
		})
	}
	return sitemapxml.NewWriter(s.GeneratedBy).Index(entries)
}

// GetGeneratedAgo returns the time since the published sitemap of a context was written.
func (g *Generator) GetGeneratedAgo(ctx context.Context, sitemapContext string) (time.Duration, error) {
	deltas, listErr := g.deltas.ListPublished(ctx, sitemapContext)
	if listErr != nil {
		return 0, fmt.Errorf("list deltas of %s: %w", sitemapContext, listErr)
	}
	if len(deltas) == 0 {
		return 0, ErrSitemapNotFound
	}
	return g.now().Sub(deltas[0].CreatedAt), nil
}
