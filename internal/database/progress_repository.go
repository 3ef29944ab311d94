package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// ProgressRepository stores the state of the in-flight run as a single row of sitemap_progress.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Load returns the stored state, or nil when no run is in flight.
func (r *ProgressRepository) Load(ctx context.Context) (*domain.ProgressState, error) {
	var data string
	query := `SELECT state FROM sitemap_progress WHERE id = 1`

	err := r.db.GetContext(ctx, &data, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var state domain.ProgressState
	if unmarshalErr := json.Unmarshal([]byte(data), &state); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStateCorrupt, unmarshalErr)
	}
	return &state, nil
}

// Save replaces the stored state.
func (r *ProgressRepository) Save(ctx context.Context, state *domain.ProgressState) error {
	data, marshalErr := json.Marshal(state)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal progress: %w", marshalErr)
	}

	query := r.db.Rebind(`
		INSERT INTO sitemap_progress (id, state, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`)

	if _, err := r.db.ExecContext(ctx, query, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Delete removes the stored state.
func (r *ProgressRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sitemap_progress WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
