// Package database manages the optional PostgreSQL request ledger.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool and provides query methods.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// migrationLockID keeps concurrent replicas from racing on DDL statements.
const migrationLockID int64 = 0x4F43_4F03

// Migrate creates the ledger schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection for migration: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)

	schema := `
	CREATE TABLE IF NOT EXISTS generation_requests (
		id                TEXT PRIMARY KEY,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL DEFAULT '',
		client_ip         TEXT NOT NULL,
		prompt_tokens     DOUBLE PRECISION NOT NULL DEFAULT 0,
		completion_tokens DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_tokens      DOUBLE PRECISION NOT NULL DEFAULT 0,
		latency_ms        BIGINT NOT NULL DEFAULT 0,
		status_code       INTEGER NOT NULL DEFAULT 0,
		error_detail      TEXT,
		timestamp         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_generation_requests_timestamp ON generation_requests(timestamp);
	CREATE INDEX IF NOT EXISTS idx_generation_requests_provider ON generation_requests(provider);
	`

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
