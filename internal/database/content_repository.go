package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

const contentColumns = `id, category, subcategory, published, path, external, changed_at,
	translatable, language, public, body, translations, images`

// ContentRepository reads linkable content from the content_items table.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// contentRow carries the JSON columns of content_items alongside the item.
type contentRow struct {
	domain.ContentItem
	TranslationsJSON string `db:"translations"`
	ImagesJSON       string `db:"images"`
}

func (row *contentRow) item() (domain.ContentItem, error) {
	item := row.ContentItem
	if row.TranslationsJSON != "" {
		if err := json.Unmarshal([]byte(row.TranslationsJSON), &item.Translations); err != nil {
			return item, fmt.Errorf("decode translations of %s: %w", item.ID, err)
		}
	}
	if row.ImagesJSON != "" {
		if err := json.Unmarshal([]byte(row.ImagesJSON), &item.ImageURLs); err != nil {
			return item, fmt.Errorf("decode images of %s: %w", item.ID, err)
		}
	}
	return item, nil
}

func contentWhere(filter domain.ContentFilter) (clause string, args []any) {
	conditions := []string{"category = ?"}
	args = []any{filter.Category}

	if filter.Subcategory != "" {
		conditions = append(conditions, "subcategory = ?")
		args = append(args, filter.Subcategory)
	}
	if filter.PublishedOnly {
		conditions = append(conditions, "published = ?")
		args = append(args, true)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Count returns the number of items matching filter.
func (r *ContentRepository) Count(ctx context.Context, filter domain.ContentFilter) (int, error) {
	where, args := contentWhere(filter)
	query := r.db.Rebind("SELECT COUNT(*) FROM content_items" + where)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count content %s: %w", filter.Category, err)
	}
	return count, nil
}

// FetchPage returns a page of items matching filter in ascending ID order.
func (r *ContentRepository) FetchPage(
	ctx context.Context,
	filter domain.ContentFilter,
	offset, limit int,
) ([]domain.ContentItem, error) {
	where, args := contentWhere(filter)
	query := r.db.Rebind("SELECT " + contentColumns + " FROM content_items" + where +
		" ORDER BY id LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	var rows []contentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch content %s: %w", filter.Category, err)
	}

	items := make([]domain.ContentItem, 0, len(rows))
	for i := range rows {
		item, decodeErr := rows[i].item()
		if decodeErr != nil {
			return nil, decodeErr
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns one item by ID.
func (r *ContentRepository) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	query := r.db.Rebind("SELECT " + contentColumns + " FROM content_items WHERE id = ?")

	var row contentRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", id, err)
	}

	item, decodeErr := row.item()
	if decodeErr != nil {
		return nil, decodeErr
	}
	return &item, nil
}

// Upsert inserts or replaces an item.
func (r *ContentRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	translations, marshalErr := json.Marshal(nonNil(item.Translations))
	if marshalErr != nil {
		return fmt.Errorf("encode translations of %s: %w", item.ID, marshalErr)
	}
	images, marshalErr := json.Marshal(nonNil(item.ImageURLs))
	if marshalErr != nil {
		return fmt.Errorf("encode images of %s: %w", item.ID, marshalErr)
	}

	query := r.db.Rebind(`
		INSERT INTO content_items (` + contentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			published = EXCLUDED.published,
			path = EXCLUDED.path,
			external = EXCLUDED.external,
			changed_at = EXCLUDED.changed_at,
			translatable = EXCLUDED.translatable,
			language = EXCLUDED.language,
			public = EXCLUDED.public,
			body = EXCLUDED.body,
			translations = EXCLUDED.translations,
			images = EXCLUDED.images
	`)

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.Category, item.Subcategory, item.Published, item.Path, item.External,
		item.ChangedAt, item.Translatable, item.Language, item.Public, item.Body,
		string(translations), string(images),
	)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", item.ID, err)
	}
	return nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
