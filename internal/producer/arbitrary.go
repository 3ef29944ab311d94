package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// Arbitrary link producer identifiers.
const (
	ArbitraryProducerName = "arbitrary"
	ArbitraryCategory     = "arbitrary"
)

// ArbitraryLink is a link supplied by code rather than stored settings.
type ArbitraryLink struct {
	settings.CustomLink
	LastModified *time.Time `json:"lastmod,omitempty"`
	// Images are absolute image URLs or paths relative to the base URL.
	Images []string `json:"images,omitempty"`
}

// LinkSource supplies arbitrary links. Links without a context belong in every context.
type LinkSource interface {
	Links(ctx context.Context) ([]ArbitraryLink, error)
}

// LinkSourceFunc adapts a function to LinkSource.
type LinkSourceFunc func(ctx context.Context) ([]ArbitraryLink, error)

// Links calls f.
func (f LinkSourceFunc) Links(ctx context.Context) ([]ArbitraryLink, error) {
	return f(ctx)
}

// ArbitraryProducer yields the links of a LinkSource that belong in a context.
// The source is queried on every call, so it should return links in a stable order.
type ArbitraryProducer struct {
	source LinkSource
}

// NewArbitraryProducer creates an ArbitraryProducer. A nil source yields nothing.
func NewArbitraryProducer(source LinkSource) *ArbitraryProducer {
	return &ArbitraryProducer{source: source}
}

type arbitraryCandidate struct {
	ArbitraryLink
}

func (c arbitraryCandidate) CandidateID() string {
	return c.Path
}

// Name returns ArbitraryProducerName.
func (p *ArbitraryProducer) Name() string { return ArbitraryProducerName }

// Overrides returns nil.
func (p *ArbitraryProducer) Overrides() []string { return nil }

func (p *ArbitraryProducer) linksFor(ctx context.Context, sitemapContext string) ([]ArbitraryLink, error) {
	if p.source == nil {
		return nil, nil
	}
	all, err := p.source.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("load arbitrary links: %w", err)
	}

	var links []ArbitraryLink
	for _, l := range all {
		if settings.InContext(l.Context, sitemapContext) {
			links = append(links, l)
		}
	}
	return links, nil
}

// DataSets returns a single data set when the source has links for the context.
func (p *ArbitraryProducer) DataSets(ctx context.Context, sitemapContext string, _ *settings.Settings) ([]domain.DataSet, error) {
	links, err := p.linksFor(ctx, sitemapContext)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return []domain.DataSet{{Category: ArbitraryCategory}}, nil
}

// Count returns the number of links for the context.
func (p *ArbitraryProducer) Count(ctx context.Context, scope Scope) (int, error) {
	links, err := p.linksFor(ctx, scope.Context)
	return len(links), err
}

// Fetch returns a page of links for the context.
func (p *ArbitraryProducer) Fetch(ctx context.Context, scope Scope, offset, limit int) ([]Candidate, error) {
	links, err := p.linksFor(ctx, scope.Context)
	if err != nil {
		return nil, err
	}
	if offset >= len(links) {
		return nil, nil
	}
	end := min(offset+limit, len(links))

	candidates := make([]Candidate, 0, end-offset)
	for _, link := range links[offset:end] {
		candidates = append(candidates, arbitraryCandidate{ArbitraryLink: link})
	}
	return candidates, nil
}

// ToURLRecord maps an arbitrary link. Links are public and never translatable; links
// that would fail custom link validation are rejected.
func (p *ArbitraryProducer) ToURLRecord(_ context.Context, scope Scope, c Candidate) (*domain.URLRecord, error) {
	link, ok := c.(arbitraryCandidate)
	if !ok {
		return nil, fmt.Errorf("arbitrary producer: unexpected candidate %T", c)
	}
	if err := settings.ValidateCustomLink(link.CustomLink); err != nil {
		return nil, Reject(err.Error())
	}

	path, pathErr := itemPath(link.Path, false)
	if pathErr != nil {
		return nil, pathErr
	}

	rec := &domain.URLRecord{
		Path:            path,
		LastModified:    link.LastModified,
		Priority:        priorityPtr(link.Priority),
		ChangeFrequency: link.ChangeFrequency,
		Context:         scope.Context,
		Meta: domain.Meta{
			Producer: ArbitraryProducerName,
			Category: ArbitraryCategory,
			RawPath:  link.Path,
		},
		Target: domain.Target{Public: true},
	}
	if len(link.Images) > 0 {
		rec.Images = ExtractImages(scope.Settings.BaseURL, link.Images, "")
	}
	return rec, nil
}
