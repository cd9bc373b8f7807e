package db

import (
	"context"
	"fmt"
)

// schema is the durable layout for runs and their steps. Run/step details
// and params are opaque structured documents, so they live in jsonb.
const schema = `
CREATE TABLE IF NOT EXISTS photos (
	id           UUID PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
	object_key   TEXT NOT NULL,
	uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id              UUID PRIMARY KEY,
	photo_id        UUID NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
	status          TEXT NOT NULL DEFAULT 'queued',
	detector_name   TEXT NOT NULL,
	detector_params JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_photo_created
	ON runs (photo_id, created_at DESC);

CREATE TABLE IF NOT EXISTS steps (
	run_id     UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq        INT  NOT NULL,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	details    JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, seq),
	UNIQUE (run_id, name)
);

CREATE TABLE IF NOT EXISTS feedback (
	id         UUID PRIMARY KEY,
	run_id     UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	correct    BOOLEAN NOT NULL,
	reasons    JSONB NOT NULL DEFAULT '[]',
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the schema. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
