package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Supported migration dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// MigrationSource returns the embedded migration files for a dialect.
func MigrationSource(dialect string) (source.Driver, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return src, nil
}

// NewPostgresMigrator builds a migrator for an open PostgreSQL connection.
func NewPostgresMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := MigrationSource(DialectPostgres)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, DialectPostgres, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. Having nothing to apply is not an error.
func Up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
