package database

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS flyer_run (
		id          TEXT PRIMARY KEY,
		retailer    TEXT NOT NULL,
		status      TEXT NOT NULL,
		artifacts   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		error       TEXT,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS flyer_artifact (
		id            UUID PRIMARY KEY,
		run_id        TEXT NOT NULL REFERENCES flyer_run(id) ON DELETE CASCADE,
		retailer      TEXT NOT NULL,
		store         JSONB NOT NULL,
		journal       INTEGER NOT NULL,
		page          INTEGER NOT NULL,
		sub           INTEGER NOT NULL,
		source_ref    TEXT NOT NULL DEFAULT '',
		kind          TEXT NOT NULL,
		rel_path      TEXT NOT NULL UNIQUE,
		size_bytes    BIGINT NOT NULL,
		content_type  TEXT NOT NULL DEFAULT '',
		validity_slug TEXT NOT NULL DEFAULT '',
		saved_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS flyer_artifact_run_idx ON flyer_artifact (run_id)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL,
		retry_count    INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_event_pending_idx ON outbox_event (status, next_retry_at)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
