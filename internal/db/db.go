// Package db provides PostgreSQL access for leads and customer reviews.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		sms_consent BOOLEAN NOT NULL DEFAULT FALSE,
		language TEXT NOT NULL DEFAULT 'en',
		source TEXT NOT NULL DEFAULT 'website',
		status TEXT NOT NULL DEFAULT 'new',
		notes TEXT,
		assigned_to TEXT,
		user_agent TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		contacted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id BIGSERIAL PRIMARY KEY,
		review_id TEXT NOT NULL UNIQUE,
		content_hash TEXT NOT NULL UNIQUE,
		author_name TEXT NOT NULL,
		author_url TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		profile_photo_url TEXT,
		rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		relative_time_description TEXT,
		text TEXT NOT NULL DEFAULT '',
		review_time TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_active_time ON reviews (is_active, review_time DESC)`,
}

// EnsureSchema creates the tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
