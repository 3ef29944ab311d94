package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// MenuRepository reads navigation links from the menu_links table.
type MenuRepository struct {
	db *sqlx.DB
}

// NewMenuRepository creates a new menu repository.
func NewMenuRepository(db *sqlx.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

// Count returns the number of links in menu, enabled or not.
func (r *MenuRepository) Count(ctx context.Context, menu string) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM menu_links WHERE menu_name = ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, menu); err != nil {
		return 0, fmt.Errorf("count menu %s: %w", menu, err)
	}
	return count, nil
}

// FetchPage returns links of menu ordered by weight then ID.
func (r *MenuRepository) FetchPage(ctx context.Context, menu string, offset, limit int) ([]domain.MenuLink, error) {
	query := r.db.Rebind(`
		SELECT id, menu_name, title, path, external, enabled, weight, content_id
		FROM menu_links
		WHERE menu_name = ?
		ORDER BY weight, id
		LIMIT ? OFFSET ?
	`)

	var links []domain.MenuLink
	if err := r.db.SelectContext(ctx, &links, query, menu, limit, offset); err != nil {
		return nil, fmt.Errorf("fetch menu %s: %w", menu, err)
	}
	return links, nil
}

// Upsert inserts or replaces a link.
func (r *MenuRepository) Upsert(ctx context.Context, link *domain.MenuLink) error {
	query := r.db.Rebind(`
		INSERT INTO menu_links (id, menu_name, title, path, external, enabled, weight, content_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			menu_name = EXCLUDED.menu_name,
			title = EXCLUDED.title,
			path = EXCLUDED.path,
			external = EXCLUDED.external,
			enabled = EXCLUDED.enabled,
			weight = EXCLUDED.weight,
			content_id = EXCLUDED.content_id
	`)

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.Menu, link.Title, link.Path, link.External, link.Enabled, link.Weight, link.ContentID)
	if err != nil {
		return fmt.Errorf("upsert menu link %s: %w", link.ID, err)
	}
	return nil
}
