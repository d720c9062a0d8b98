package project

import (
	"context"
	"fmt"

	"dublab/internal/database"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		kind TEXT NOT NULL,
		language_code TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT '',
		script_text TEXT NOT NULL DEFAULT '',
		media_key TEXT NOT NULL,
		media_kind TEXT NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_versions_project ON versions(project_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS caption_sets (
		project_id UUID PRIMARY KEY REFERENCES projects(id),
		language_code TEXT NOT NULL,
		style_hints_json TEXT NOT NULL DEFAULT '{}',
		segments_json TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		workflow TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the schema when missing.
func Migrate(ctx context.Context, db *database.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
