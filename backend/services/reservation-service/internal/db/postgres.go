package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	libdb "evslot/backend/libs/db"
	"evslot/backend/services/reservation-service/internal/config"
)

//go:embed schema.sql
var schema string

// NewPostgres connects to Postgres using shared library helper.
func NewPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	return libdb.NewPostgresDB(cfg.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		ConnLifetime: cfg.ConnLifetime,
	})
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}
	return nil
}
