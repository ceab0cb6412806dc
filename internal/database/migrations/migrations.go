package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// schemaVersion is the last migration that only creates schema; everything
// after it is seed data.
const schemaVersion = 1

// MigrateOptions defines configuration options for migration
type MigrateOptions struct {
	// AutoMigrate determines whether to run migrations automatically on startup
	AutoMigrate bool
	// SeedData determines whether to also run seed migrations (business types,
	// default counters, settings) or schema only
	SeedData bool
}

// DefaultOptions returns the default migration options
func DefaultOptions() MigrateOptions {
	return MigrateOptions{
		AutoMigrate: true,
		SeedData:    true,
	}
}

// Runner handles database migrations
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	migrator *migrate.Migrate
}

// NewRunner creates a new migration runner
func NewRunner(bunDB *bun.DB, opts MigrateOptions) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
	}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := sqlite.WithInstance(r.bunDB.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

// RunMigrations runs all pending migrations
func (r *Runner) RunMigrations() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	if r.options.SeedData {
		log.Println("Running all migrations including seed data...")
		if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Println("Running schema migrations only...")
		if err := r.migrator.Migrate(schemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run schema migration: %w", err)
		}
	}

	version, dirty, err := r.migrator.Version()
	if err == nil {
		if dirty {
			log.Println("Detected dirty migration, attempting to fix...")
			if err := r.migrator.Force(int(version)); err != nil {
				return fmt.Errorf("failed to fix dirty migration: %w", err)
			}
		}
		log.Printf("Current schema version: %d", version)
	} else if !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	return nil
}

// MigrateUp runs all pending migrations
func (r *Runner) MigrateUp() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if r.migrator == nil {
		if err := r.Initialize(); err != nil {
			return err
		}
	}

	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}
