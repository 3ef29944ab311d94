package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// Menu producer identifiers. Menu links are configured under MenuCategory with the
// menu name as subcategory.
const (
	MenuProducerName = "menu"
	MenuCategory     = "menu_link_content"
)

// MenuProducer yields enabled internal links of indexed navigation menus. Links that
// point at a content item take its modification time and language versions.
type MenuProducer struct {
	menus   MenuStore
	content ContentStore
}

// NewMenuProducer creates a MenuProducer. content may be nil.
func NewMenuProducer(menus MenuStore, content ContentStore) *MenuProducer {
	return &MenuProducer{menus: menus, content: content}
}

// Name returns MenuProducerName.
func (p *MenuProducer) Name() string { return MenuProducerName }

// Overrides claims MenuCategory.
func (p *MenuProducer) Overrides() []string { return []string{MenuCategory} }

// DataSets returns one data set per menu indexed in the context.
func (p *MenuProducer) DataSets(_ context.Context, sitemapContext string, s *settings.Settings) ([]domain.DataSet, error) {
	return indexedDataSets(s.CategoriesOf(sitemapContext), MenuCategory), nil
}

// Count returns the number of links in the menu.
func (p *MenuProducer) Count(ctx context.Context, scope Scope) (int, error) {
	n, err := p.menus.Count(ctx, scope.DataSet.Subcategory)
	if err != nil {
		return 0, fmt.Errorf("count menu %s: %w", scope.DataSet.Subcategory, err)
	}
	return n, nil
}

// Fetch returns a page of menu links.
func (p *MenuProducer) Fetch(ctx context.Context, scope Scope, offset, limit int) ([]Candidate, error) {
	links, err := p.menus.FetchPage(ctx, scope.DataSet.Subcategory, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch menu %s at %d: %w", scope.DataSet.Subcategory, offset, err)
	}
	candidates := make([]Candidate, len(links))
	for i := range links {
		candidates[i] = &links[i]
	}
	return candidates, nil
}

// ToURLRecord maps a menu link.
func (p *MenuProducer) ToURLRecord(ctx context.Context, scope Scope, c Candidate) (*domain.URLRecord, error) {
	link, ok := c.(*domain.MenuLink)
	if !ok {
		return nil, fmt.Errorf("menu producer: unexpected candidate %T", c)
	}
	if !link.Enabled {
		return nil, Reject("link disabled")
	}

	cfg := scope.Settings.ItemSettings(scope.Context, MenuCategory, link.Menu, link.ID)
	if !cfg.Index {
		return nil, Reject("indexing disabled")
	}

	path, pathErr := itemPath(link.Path, link.External)
	if pathErr != nil {
		return nil, pathErr
	}

	rec := &domain.URLRecord{
		Path:            path,
		Priority:        priorityPtr(cfg.Priority),
		ChangeFrequency: cfg.ChangeFrequency,
		Context:         scope.Context,
		Meta: domain.Meta{
			Producer:    MenuProducerName,
			Category:    MenuCategory,
			Subcategory: link.Menu,
			ItemID:      link.ID,
			RawPath:     link.Path,
		},
		Target: domain.Target{Public: true},
	}

	if link.ContentID == "" || p.content == nil {
		return rec, nil
	}

	item, getErr := p.content.Get(ctx, link.ContentID)
	switch {
	case errors.Is(getErr, domain.ErrNotFound):
		return nil, Reject("linked content missing")
	case getErr != nil:
		return nil, fmt.Errorf("load linked content %s: %w", link.ContentID, getErr)
	}
	if !item.HasPublicAccess() {
		return nil, Reject("no public access")
	}

	rec.LastModified = item.ChangedAt
	rec.Target = item.Target()
	if cfg.IncludeImages {
		rec.Images = ExtractImages(scope.Settings.BaseURL, item.ImageURLs, item.Body)
	}
	return rec, nil
}
