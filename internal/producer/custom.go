package producer

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// Custom link producer identifiers.
const (
	CustomProducerName = "custom"
	CustomCategory     = "custom"
)

// CustomProducer yields the operator-declared custom links of a context.
type CustomProducer struct{}

// NewCustomProducer creates a CustomProducer.
func NewCustomProducer() *CustomProducer {
	return &CustomProducer{}
}

type customCandidate struct {
	settings.CustomLink
}

func (c customCandidate) CandidateID() string {
	return c.Path
}

// Name returns CustomProducerName.
func (p *CustomProducer) Name() string { return CustomProducerName }

// Overrides returns nil.
func (p *CustomProducer) Overrides() []string { return nil }

// DataSets returns a single data set when the context has custom links.
func (p *CustomProducer) DataSets(_ context.Context, sitemapContext string, s *settings.Settings) ([]domain.DataSet, error) {
	if len(s.CustomLinksFor(sitemapContext)) == 0 {
		return nil, nil
	}
	return []domain.DataSet{{Category: CustomCategory}}, nil
}

// Count returns the number of custom links of the context.
func (p *CustomProducer) Count(_ context.Context, scope Scope) (int, error) {
	return len(scope.Settings.CustomLinksFor(scope.Context)), nil
}

// Fetch returns a page of custom links.
func (p *CustomProducer) Fetch(_ context.Context, scope Scope, offset, limit int) ([]Candidate, error) {
	links := scope.Settings.CustomLinksFor(scope.Context)
	if offset >= len(links) {
		return nil, nil
	}
	end := min(offset+limit, len(links))

	candidates := make([]Candidate, 0, end-offset)
	for _, link := range links[offset:end] {
		candidates = append(candidates, customCandidate{CustomLink: link})
	}
	return candidates, nil
}

// ToURLRecord maps a custom link. Custom links are never translatable and always public.
func (p *CustomProducer) ToURLRecord(_ context.Context, scope Scope, c Candidate) (*domain.URLRecord, error) {
	link, ok := c.(customCandidate)
	if !ok {
		return nil, fmt.Errorf("custom producer: unexpected candidate %T", c)
	}

	path, pathErr := itemPath(link.Path, false)
	if pathErr != nil {
		return nil, pathErr
	}

	return &domain.URLRecord{
		Path:            path,
		Priority:        priorityPtr(link.Priority),
		ChangeFrequency: link.ChangeFrequency,
		Context:         scope.Context,
		Meta: domain.Meta{
			Producer: CustomProducerName,
			Category: CustomCategory,
			RawPath:  link.Path,
		},
		Target: domain.Target{Public: true},
	}, nil
}
