package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/taskboard/kanban/internal/infrastructure/config"
)

const pingTimeout = 5 * time.Second

// DB is the board's connection pool. Repositories receive the embedded
// *sqlx.DB; the wrapper adds health reporting for the server.
type DB struct {
	DB *sqlx.DB
}

// New opens a PostgreSQL pool and verifies it answers.
func New(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sqlx.Open(DialectPostgres, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	configurePool(conn, cfg)

	db := &DB{DB: conn}
	if err := db.HealthCheck(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap adopts an already opened connection.
func Wrap(conn *sqlx.DB) *DB {
	return &DB{DB: conn}
}

func configurePool(conn *sqlx.DB, cfg config.DatabaseConfig) {
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// HealthCheck pings the database, giving up after five seconds.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// PoolStats reports the driver and connection pool counters for the
// detailed health endpoint.
func (db *DB) PoolStats() map[string]interface{} {
	stats := db.DB.Stats()

	return map[string]interface{}{
		"driver":               db.DB.DriverName(),
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}

// WithTransaction runs fn inside a transaction on db. The transaction is
// rolled back when fn returns an error or panics.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
