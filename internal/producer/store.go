package producer

import (
	"context"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// ContentStore is the read side of the content record store.
type ContentStore interface {
	Count(ctx context.Context, filter domain.ContentFilter) (int, error)
	// FetchPage returns items in ascending ID order.
	FetchPage(ctx context.Context, filter domain.ContentFilter, offset, limit int) ([]domain.ContentItem, error)
	// Get returns domain.ErrNotFound when the item does not exist.
	Get(ctx context.Context, id string) (*domain.ContentItem, error)
}

// MenuStore is the read side of the navigation menu store.
type MenuStore interface {
	Count(ctx context.Context, menu string) (int, error)
	// FetchPage returns enabled and disabled links ordered by weight then ID.
	FetchPage(ctx context.Context, menu string, offset, limit int) ([]domain.MenuLink, error)
}
