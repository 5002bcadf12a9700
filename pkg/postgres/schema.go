package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pages own their chunks, but the ownership is enforced by the indexer
// (delete-then-reinsert on content change), not by a foreign key: chunks are
// written before the owning page row is upserted.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		url          TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id          UUID PRIMARY KEY,
		url         TEXT NOT NULL,
		chunk_index INT NOT NULL,
		text        TEXT NOT NULL,
		embedding   REAL[] NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS chunks_url_idx ON chunks (url)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		sid        TEXT PRIMARY KEY,
		history    JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS faq_overrides (
		id                 UUID PRIMARY KEY,
		question           TEXT NOT NULL,
		norm_question      TEXT NOT NULL UNIQUE,
		answer             TEXT NOT NULL,
		question_embedding REAL[],
		force              BOOLEAN NOT NULL DEFAULT false,
		reviewer           TEXT NOT NULL DEFAULT '',
		sid                TEXT NOT NULL DEFAULT '',
		assistant_mid      TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Bootstrap creates the required tables if they do not exist. Statements are
// idempotent so repeated startups are safe.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
