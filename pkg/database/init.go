package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Alijeyrad/consultorio_backend/config"
)

// EnsureDatabase creates the configured database if it does not exist.
// It connects to the maintenance database "postgres" to do so.
func EnsureDatabase(ctx context.Context, c config.DatabaseConfig) error {
	if c.DBName == "" {
		return fmt.Errorf("database.dbname is empty")
	}

	admin := FromCentralConfig(c)
	admin.DBName = "postgres"

	conn, err := Open(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer conn.Close()

	return createDatabaseIfNotExists(ctx, conn, c.DBName)
}

func createDatabaseIfNotExists(ctx context.Context, conn *sql.DB, dbName string) error {
	var exists bool
	err := conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, dbName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}
