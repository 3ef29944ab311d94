package producer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// RecordProducerName is the name of the content record producer.
const RecordProducerName = "record"

// RecordProducer yields one record per published content item of every indexed subcategory.
type RecordProducer struct {
	store ContentStore
}

// NewRecordProducer creates a RecordProducer reading from store.
func NewRecordProducer(store ContentStore) *RecordProducer {
	return &RecordProducer{store: store}
}

// Name returns RecordProducerName.
func (p *RecordProducer) Name() string { return RecordProducerName }

// Overrides returns nil; content records own no categories exclusively.
func (p *RecordProducer) Overrides() []string { return nil }

// DataSets returns every subcategory indexed in the context, sorted by category then subcategory.
func (p *RecordProducer) DataSets(_ context.Context, sitemapContext string, s *settings.Settings) ([]domain.DataSet, error) {
	return indexedDataSets(s.CategoriesOf(sitemapContext), ""), nil
}

func indexedDataSets(configured settings.Categories, onlyCategory string) []domain.DataSet {
	categories := make([]string, 0, len(configured))
	for category := range configured {
		if onlyCategory == "" || category == onlyCategory {
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)

	var sets []domain.DataSet
	for _, category := range categories {
		subs := configured[category]
		names := make([]string, 0, len(subs))
		for sub, b := range subs {
			if b.Index {
				names = append(names, sub)
			}
		}
		sort.Strings(names)
		for _, sub := range names {
			sets = append(sets, domain.DataSet{Category: category, Subcategory: sub})
		}
	}
	return sets
}

func filterFor(ds domain.DataSet) domain.ContentFilter {
	return domain.ContentFilter{Category: ds.Category, Subcategory: ds.Subcategory, PublishedOnly: true}
}

// Count returns the number of published items in the data set.
func (p *RecordProducer) Count(ctx context.Context, scope Scope) (int, error) {
	n, err := p.store.Count(ctx, filterFor(scope.DataSet))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", scope.DataSet, err)
	}
	return n, nil
}

// Fetch returns a page of published items.
func (p *RecordProducer) Fetch(ctx context.Context, scope Scope, offset, limit int) ([]Candidate, error) {
	items, err := p.store.FetchPage(ctx, filterFor(scope.DataSet), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s at %d: %w", scope.DataSet, offset, err)
	}
	candidates := make([]Candidate, len(items))
	for i := range items {
		candidates[i] = &items[i]
	}
	return candidates, nil
}

// ToURLRecord maps a content item, rejecting items that are not indexed, have no
// internal route or are not publicly accessible in any language.
func (p *RecordProducer) ToURLRecord(_ context.Context, scope Scope, c Candidate) (*domain.URLRecord, error) {
	item, ok := c.(*domain.ContentItem)
	if !ok {
		return nil, fmt.Errorf("record producer: unexpected candidate %T", c)
	}

	cfg := scope.Settings.ItemSettings(scope.Context, item.Category, item.Subcategory, item.ID)
	if !cfg.Index {
		return nil, Reject("indexing disabled")
	}

	path, pathErr := itemPath(item.Path, item.External)
	if pathErr != nil {
		return nil, pathErr
	}
	if !item.HasPublicAccess() {
		return nil, Reject("no public access")
	}

	rec := &domain.URLRecord{
		Path:            path,
		LastModified:    item.ChangedAt,
		Priority:        priorityPtr(cfg.Priority),
		ChangeFrequency: cfg.ChangeFrequency,
		Context:         scope.Context,
		Meta: domain.Meta{
			Producer:    RecordProducerName,
			Category:    item.Category,
			Subcategory: item.Subcategory,
			ItemID:      item.ID,
			RawPath:     item.Path,
		},
		Target: item.Target(),
	}
	if cfg.IncludeImages {
		rec.Images = ExtractImages(scope.Settings.BaseURL, item.ImageURLs, item.Body)
	}

	return rec, nil
}

func itemPath(raw string, external bool) (string, error) {
	if external {
		return "", Reject("external path")
	}
	path, err := domain.NormalizePath(raw)
	switch {
	case errors.Is(err, domain.ErrExternalPath):
		return "", Reject("external path")
	case err != nil:
		return "", Reject("no route")
	}
	return path, nil
}

func priorityPtr(p settings.Priority) *float64 {
	v := float64(p)
	return &v
}
