package generator

import (
	"context"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Hooks let embedding code adjust output without writing a producer.
type Hooks struct {
	// AlterRecord runs after a candidate is mapped. Returning false drops the record.
	AlterRecord func(ctx context.Context, rec *domain.URLRecord) bool
	// AlterVariants runs on each chunk right before it is serialized.
	AlterVariants func(sitemapContext string, variants []domain.Variant) []domain.Variant
}
