// Package project persists project state: the append-only version history,
// the active caption set, and job tracking rows.
package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dublab/internal/database"
	"dublab/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound marks lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// Store is the Postgres-backed project store.
type Store struct {
	db *database.DB
}

// NewStore creates a store on an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	p := &models.Project{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	query := `INSERT INTO projects (id, name, created_at) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return p, nil
}

// GetProject loads one project.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	query := `SELECT id, name, created_at FROM projects WHERE id = $1`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// AppendVersion appends one record to a project's version history. Records
// are insert-only: nothing ever updates or rewrites an existing row, which
// is what keeps the history append-only even under partial failure.
func (s *Store) AppendVersion(ctx context.Context, rec models.VersionRecord) error {
	query := `
		INSERT INTO versions (id, project_id, kind, language_code, tone, script_text,
			media_key, media_kind, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ProjectID, rec.Kind, rec.LanguageCode, rec.Tone, rec.ScriptText,
		rec.Asset.Key, rec.Asset.Kind, rec.Asset.DurationSeconds, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append version: %w", err)
	}
	return nil
}

// Versions lists a project's version history, oldest first.
func (s *Store) Versions(ctx context.Context, projectID uuid.UUID) ([]models.VersionRecord, error) {
	query := `
		SELECT id, project_id, kind, language_code, tone, script_text,
			media_key, media_kind, duration_seconds, created_at
		FROM versions WHERE project_id = $1 ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var records []models.VersionRecord
	for rows.Next() {
		var rec models.VersionRecord
		if err := rows.Scan(
			&rec.ID, &rec.ProjectID, &rec.Kind, &rec.LanguageCode, &rec.Tone, &rec.ScriptText,
			&rec.Asset.Key, &rec.Asset.Kind, &rec.Asset.DurationSeconds, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// OriginalVersion returns a project's first (original upload) record, or nil
// when the project has no upload yet.
func (s *Store) OriginalVersion(ctx context.Context, projectID uuid.UUID) (*models.VersionRecord, error) {
	query := `
		SELECT id, project_id, kind, language_code, tone, script_text,
			media_key, media_kind, duration_seconds, created_at
		FROM versions WHERE project_id = $1 AND kind = $2
		ORDER BY created_at LIMIT 1
	`
	var rec models.VersionRecord
	if err := s.db.QueryRowContext(ctx, query, projectID, models.VersionOriginal).Scan(
		&rec.ID, &rec.ProjectID, &rec.Kind, &rec.LanguageCode, &rec.Tone, &rec.ScriptText,
		&rec.Asset.Key, &rec.Asset.Kind, &rec.Asset.DurationSeconds, &rec.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get original version: %w", err)
	}
	return &rec, nil
}

// DeleteVersion removes one non-original record. The original upload is
// undeletable.
func (s *Store) DeleteVersion(ctx context.Context, projectID, versionID uuid.UUID) error {
	query := `DELETE FROM versions WHERE id = $1 AND project_id = $2 AND kind <> $3`
	res, err := s.db.ExecContext(ctx, query, versionID, projectID, models.VersionOriginal)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("version %s missing or is the undeletable original: %w", versionID, ErrNotFound)
	}
	return nil
}

// ReplaceCaptionSet stores the project's single active caption set,
// replacing any previous one.
func (s *Store) ReplaceCaptionSet(ctx context.Context, projectID uuid.UUID, set models.CaptionSet) error {
	segmentsJSON, err := json.Marshal(set.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	hintsJSON, err := json.Marshal(set.StyleHints)
	if err != nil {
		return fmt.Errorf("failed to marshal style hints: %w", err)
	}

	query := `
		INSERT INTO caption_sets (project_id, language_code, style_hints_json, segments_json, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO UPDATE
		SET language_code = EXCLUDED.language_code,
		    style_hints_json = EXCLUDED.style_hints_json,
		    segments_json = EXCLUDED.segments_json,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		projectID, set.LanguageCode, string(hintsJSON), string(segmentsJSON), time.Now(),
	); err != nil {
		return fmt.Errorf("failed to replace caption set: %w", err)
	}
	return nil
}

// CaptionSet loads the project's active caption set, or nil when none exists.
func (s *Store) CaptionSet(ctx context.Context, projectID uuid.UUID) (*models.CaptionSet, error) {
	query := `SELECT language_code, style_hints_json, segments_json FROM caption_sets WHERE project_id = $1`
	var set models.CaptionSet
	var hintsJSON, segmentsJSON string
	if err := s.db.QueryRowContext(ctx, query, projectID).Scan(&set.LanguageCode, &hintsJSON, &segmentsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get caption set: %w", err)
	}
	if err := json.Unmarshal([]byte(segmentsJSON), &set.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
	}
	if err := json.Unmarshal([]byte(hintsJSON), &set.StyleHints); err != nil {
		return nil, fmt.Errorf("failed to unmarshal style hints: %w", err)
	}
	return &set, nil
}

// CreateJob inserts a job tracking row.
func (s *Store) CreateJob(ctx context.Context, jobID, projectID uuid.UUID, workflow string) error {
	now := time.Now()
	query := `
		INSERT INTO jobs (id, project_id, workflow, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, jobID, projectID, workflow, models.JobCreated, now, now); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus moves a job to a new status, optionally recording an error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus, errMsg *string) error {
	query := `UPDATE jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`
	if _, err := s.db.ExecContext(ctx, query, status, errMsg, time.Now(), jobID); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// JobStatus reads a job's current status and error.
func (s *Store) JobStatus(ctx context.Context, jobID uuid.UUID) (models.JobStatus, string, error) {
	query := `SELECT status, COALESCE(error, '') FROM jobs WHERE id = $1`
	var status models.JobStatus
	var errMsg string
	if err := s.db.QueryRowContext(ctx, query, jobID).Scan(&status, &errMsg); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return "", "", fmt.Errorf("failed to get job: %w", err)
	}
	return status, errMsg, nil
}
