// Package api exposes the submission surface: project upload, workflow job
// submission, and read access to versions, captions and job state.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dublab/internal/caption"
	"dublab/internal/models"
	"dublab/internal/project"
	"dublab/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// downloadExpiry bounds presigned download links handed to clients.
const downloadExpiry = 24 * time.Hour

// Publisher is the queue surface the service publishes jobs to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// Prober measures media duration at upload time.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// ProjectService implements the submission operations on top of the project
// store, object storage and the job queue.
type ProjectService struct {
	store     *project.Store
	storage   storage.ObjectStorage
	publisher Publisher
	prober    Prober
	logger    *zap.Logger
}

// NewProjectService creates the service.
func NewProjectService(store *project.Store, objects storage.ObjectStorage, publisher Publisher, prober Prober, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		store:     store,
		storage:   objects,
		publisher: publisher,
		prober:    prober,
		logger:    logger,
	}
}

// CreateProject stores an uploaded video as a new project's original version.
// The original record is the immutable root of the project's history.
func (s *ProjectService) CreateProject(ctx context.Context, name string, file *multipart.FileHeader) (*models.Project, *models.VersionRecord, error) {
	src, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".mp4"
	}
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, nil, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, nil, fmt.Errorf("close temp file: %w", err)
	}

	duration, err := s.prober.ProbeDuration(ctx, tmp.Name())
	if err != nil {
		return nil, nil, fmt.Errorf("probe upload: %w", err)
	}

	p, err := s.store.CreateProject(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	key := fmt.Sprintf("uploads/%s%s", p.ID, ext)
	if _, err := s.storage.UploadFile(ctx, key, tmp.Name(), "video/mp4"); err != nil {
		return nil, nil, fmt.Errorf("upload original video: %w", err)
	}

	rec := models.VersionRecord{
		ID:        uuid.New(),
		ProjectID: p.ID,
		Asset: models.MediaAsset{
			Key:             key,
			DurationSeconds: duration,
			Kind:            models.AssetVideo,
		},
		Kind:      models.VersionOriginal,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendVersion(ctx, rec); err != nil {
		return nil, nil, err
	}

	s.logger.Info("project created",
		zap.String("project_id", p.ID.String()),
		zap.String("key", key),
		zap.Float64("duration_seconds", duration))
	return p, &rec, nil
}

// Project loads a project with its full version history.
func (s *ProjectService) Project(ctx context.Context, id uuid.UUID) (*models.Project, []models.VersionRecord, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	versions, err := s.store.Versions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p, versions, nil
}

// DeleteVersion removes a non-original version record and its stored media.
func (s *ProjectService) DeleteVersion(ctx context.Context, projectID, versionID uuid.UUID) error {
	versions, err := s.store.Versions(ctx, projectID)
	if err != nil {
		return err
	}
	var key string
	for _, v := range versions {
		if v.ID == versionID {
			key = v.Asset.Key
		}
	}
	if err := s.store.DeleteVersion(ctx, projectID, versionID); err != nil {
		return err
	}
	if key != "" {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			// The record is gone; an orphaned object is only wasted space.
			s.logger.Warn("remove deleted version media", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Enqueue creates a job row and publishes the job message for a worker.
func (s *ProjectService) Enqueue(ctx context.Context, projectID uuid.UUID, workflow string, payload map[string]interface{}) (uuid.UUID, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return uuid.Nil, err
	}

	jobID := uuid.New()
	if err := s.store.CreateJob(ctx, jobID, projectID, workflow); err != nil {
		return uuid.Nil, err
	}

	msg := models.JobMessage{
		JobID:     jobID.String(),
		ProjectID: projectID.String(),
		Workflow:  workflow,
		Attempt:   1,
		TraceID:   uuid.New().String(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	routingKey := fmt.Sprintf("job.%s", workflow)
	if err := s.publisher.Publish(ctx, routingKey, msg); err != nil {
		errMsg := err.Error()
		if uerr := s.store.UpdateJobStatus(ctx, jobID, models.JobFailed, &errMsg); uerr != nil {
			s.logger.Error("mark unpublished job failed", zap.Error(uerr))
		}
		return uuid.Nil, fmt.Errorf("publish job: %w", err)
	}
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobQueued, nil); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("job queued",
		zap.String("job_id", jobID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("workflow", workflow))
	return jobID, nil
}

// Captions returns the project's active caption set, or nil when none exists.
func (s *ProjectService) Captions(ctx context.Context, projectID uuid.UUID) (*models.CaptionSet, error) {
	return s.store.CaptionSet(ctx, projectID)
}

// CaptionsSRT renders the active caption set as SRT.
func (s *ProjectService) CaptionsSRT(ctx context.Context, projectID uuid.UUID) (string, error) {
	set, err := s.store.CaptionSet(ctx, projectID)
	if err != nil {
		return "", err
	}
	if set == nil {
		return "", fmt.Errorf("project %s captions: %w", projectID, project.ErrNotFound)
	}
	return caption.RenderSRT(*set), nil
}

// DownloadURL returns a presigned link for one version's media.
func (s *ProjectService) DownloadURL(ctx context.Context, projectID, versionID uuid.UUID) (string, error) {
	versions, err := s.store.Versions(ctx, projectID)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if v.ID == versionID {
			return s.storage.PresignedGetURL(ctx, v.Asset.Key, downloadExpiry)
		}
	}
	return "", fmt.Errorf("version %s: %w", versionID, project.ErrNotFound)
}

// JobStatus reads one job's status and error.
func (s *ProjectService) JobStatus(ctx context.Context, jobID uuid.UUID) (models.JobStatus, string, error) {
	return s.store.JobStatus(ctx, jobID)
}
