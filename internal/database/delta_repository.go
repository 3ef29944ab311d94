package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// DeltaRepository stores sitemap deltas in the sitemap_deltas table.
type DeltaRepository struct {
	db *sqlx.DB
}

// NewDeltaRepository creates a new delta repository.
func NewDeltaRepository(db *sqlx.DB) *DeltaRepository {
	return &DeltaRepository{db: db}
}

// Ping checks database connectivity.
func (r *DeltaRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert upserts an unpublished delta.
func (r *DeltaRepository) Insert(ctx context.Context, delta *domain.Delta) error {
	query := r.db.Rebind(`
		INSERT INTO sitemap_deltas (context, run_id, delta_index, payload, created_at, published)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (context, run_id, delta_index) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at
	`)

	_, err := r.db.ExecContext(ctx, query,
		delta.Context,
		delta.RunID,
		delta.DeltaIndex,
		delta.Payload,
		delta.CreatedAt.UTC(),
		false,
	)
	if err != nil {
		return fmt.Errorf("insert delta %d of %s: %w", delta.DeltaIndex, delta.Context, err)
	}

	return nil
}

// DeletePending removes unpublished deltas of a context.
func (r *DeltaRepository) DeletePending(ctx context.Context, sitemapContext string) error {
	query := r.db.Rebind(`DELETE FROM sitemap_deltas WHERE context = ? AND published = ?`)

	if _, err := r.db.ExecContext(ctx, query, sitemapContext, false); err != nil {
		return fmt.Errorf("delete pending deltas of %s: %w", sitemapContext, err)
	}
	return nil
}

// Publish atomically replaces the published deltas of a context with those of runID.
func (r *DeltaRepository) Publish(ctx context.Context, sitemapContext, runID string) error {
	tx, beginErr := r.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin publish of %s: %w", sitemapContext, beginErr)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery := tx.Rebind(`DELETE FROM sitemap_deltas WHERE context = ? AND published = ? AND run_id <> ?`)
	if _, err := tx.ExecContext(ctx, deleteQuery, sitemapContext, true, runID); err != nil {
		return fmt.Errorf("delete published deltas of %s: %w", sitemapContext, err)
	}

	updateQuery := tx.Rebind(`UPDATE sitemap_deltas SET published = ? WHERE context = ? AND run_id = ?`)
	if _, err := tx.ExecContext(ctx, updateQuery, true, sitemapContext, runID); err != nil {
		return fmt.Errorf("publish deltas of %s: %w", sitemapContext, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit publish of %s: %w", sitemapContext, commitErr)
	}
	return nil
}

// ListPublished returns the published deltas of a context without payloads.
func (r *DeltaRepository) ListPublished(ctx context.Context, sitemapContext string) ([]domain.Delta, error) {
	query := r.db.Rebind(`
		SELECT context, run_id, delta_index, created_at, published
		FROM sitemap_deltas
		WHERE context = ? AND published = ?
		ORDER BY delta_index
	`)

	var deltas []domain.Delta
	if err := r.db.SelectContext(ctx, &deltas, query, sitemapContext, true); err != nil {
		return nil, fmt.Errorf("list deltas of %s: %w", sitemapContext, err)
	}
	return deltas, nil
}

// GetPublished returns one published delta with its payload.
func (r *DeltaRepository) GetPublished(ctx context.Context, sitemapContext string, deltaIndex int) (*domain.Delta, error) {
	query := r.db.Rebind(`
		SELECT context, run_id, delta_index, payload, created_at, published
		FROM sitemap_deltas
		WHERE context = ? AND delta_index = ? AND published = ?
	`)

	var delta domain.Delta
	err := r.db.GetContext(ctx, &delta, query, sitemapContext, deltaIndex, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delta %d of %s: %w", deltaIndex, sitemapContext, err)
	}
	return &delta, nil
}

// DeleteContext removes every delta of a context.
func (r *DeltaRepository) DeleteContext(ctx context.Context, sitemapContext string) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sitemap_deltas WHERE context = ?`)

	result, err := r.db.ExecContext(ctx, query, sitemapContext)
	if err != nil {
		return 0, fmt.Errorf("delete deltas of %s: %w", sitemapContext, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
