package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:blankimports // PostgreSQL migrate driver
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"  //nolint:blankimports // SQLite migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/migrations"
)

// Migrator applies the embedded schema migrations for the configured driver.
type Migrator struct {
	m   *migrate.Migrate
	log logger.Logger
}

// NewMigrator opens a migrate instance for cfg.
func NewMigrator(cfg Config, log logger.Logger) (*Migrator, error) {
	cfg.SetDefaults()

	source, sourceErr := iofs.New(migrations.FS, cfg.Driver)
	if sourceErr != nil {
		return nil, fmt.Errorf("open migrations for %s: %w", cfg.Driver, sourceErr)
	}

	databaseURL, urlErr := cfg.MigrateURL()
	if urlErr != nil {
		return nil, urlErr
	}

	m, migrateErr := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if migrateErr != nil {
		return nil, fmt.Errorf("create migrate instance: %w", migrateErr)
	}

	return &Migrator{m: m, log: log}, nil
}

// Up applies all pending migrations.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("No pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	mg.log.Info("Migrations applied successfully")
	return nil
}

// Down rolls back steps migrations, at least one.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}

	if err := mg.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("No migrations to rollback")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	mg.log.Info("Migrations rolled back successfully", logger.Int("steps", steps))
	return nil
}

// Version returns the current migration version.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migrate source and database handles.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	return errors.Join(sourceErr, dbErr)
}
