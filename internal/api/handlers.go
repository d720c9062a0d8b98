package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"dublab/internal/models"
	"dublab/internal/project"
	"dublab/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the operation surface the handlers expose over HTTP.
type Service interface {
	CreateProject(ctx context.Context, name string, file *multipart.FileHeader) (*models.Project, *models.VersionRecord, error)
	Project(ctx context.Context, id uuid.UUID) (*models.Project, []models.VersionRecord, error)
	DeleteVersion(ctx context.Context, projectID, versionID uuid.UUID) error
	Enqueue(ctx context.Context, projectID uuid.UUID, workflow string, payload map[string]interface{}) (uuid.UUID, error)
	Captions(ctx context.Context, projectID uuid.UUID) (*models.CaptionSet, error)
	CaptionsSRT(ctx context.Context, projectID uuid.UUID) (string, error)
	DownloadURL(ctx context.Context, projectID, versionID uuid.UUID) (string, error)
	JobStatus(ctx context.Context, jobID uuid.UUID) (models.JobStatus, string, error)
}

// ProjectHandler handles project and job requests.
type ProjectHandler struct {
	service Service
	logger  *zap.Logger
}

// NewProjectHandler creates a handler.
func NewProjectHandler(service Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

type response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *ProjectHandler) respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response{Code: 0, Message: "ok", Data: data})
}

func (h *ProjectHandler) respondError(c *gin.Context, status, code int, message string) {
	c.JSON(status, response{Code: code, Message: message})
}

func (h *ProjectHandler) respondServiceError(c *gin.Context, err error, action string) {
	if errors.Is(err, project.ErrNotFound) {
		h.respondError(c, http.StatusNotFound, 1002, err.Error())
		return
	}
	h.logger.Error("request failed", zap.String("action", action), zap.Error(err))
	h.respondError(c, http.StatusInternalServerError, 1004, "internal error")
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, response{Code: 1001, Message: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// CreateProject handles POST /api/v1/projects.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		h.respondError(c, http.StatusBadRequest, 1003, "video file required")
		return
	}
	name := c.PostForm("name")
	if name == "" {
		name = file.Filename
	}

	p, original, err := h.service.CreateProject(c.Request.Context(), name, file)
	if err != nil {
		h.respondServiceError(c, err, "create project")
		return
	}
	h.respondSuccess(c, http.StatusCreated, gin.H{
		"project_id": p.ID.String(),
		"version_id": original.ID.String(),
		"duration_seconds": original.Asset.DurationSeconds,
		"created_at": p.CreatedAt.UTC(),
	})
}

// GetProject handles GET /api/v1/projects/:project_id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	p, versions, err := h.service.Project(c.Request.Context(), projectID)
	if err != nil {
		h.respondServiceError(c, err, "get project")
		return
	}
	h.respondSuccess(c, http.StatusOK, gin.H{
		"project":  p,
		"versions": versions,
	})
}

// DeleteVersion handles DELETE /api/v1/projects/:project_id/versions/:version_id.
// The original upload cannot be deleted.
func (h *ProjectHandler) DeleteVersion(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	versionID, ok := parseID(c, "version_id")
	if !ok {
		return
	}
	if err := h.service.DeleteVersion(c.Request.Context(), projectID, versionID); err != nil {
		h.respondServiceError(c, err, "delete version")
		return
	}
	h.respondSuccess(c, http.StatusOK, nil)
}

// DownloadVersion handles GET /api/v1/projects/:project_id/versions/:version_id/download.
func (h *ProjectHandler) DownloadVersion(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	versionID, ok := parseID(c, "version_id")
	if !ok {
		return
	}
	url, err := h.service.DownloadURL(c.Request.Context(), projectID, versionID)
	if err != nil {
		h.respondServiceError(c, err, "download version")
		return
	}
	h.respondSuccess(c, http.StatusOK, gin.H{"url": url})
}

type voiceoverRequest struct {
	Script       string `json:"script" binding:"required"`
	Tone         string `json:"tone"`
	LanguageCode string `json:"language_code"`
}

// CreateVoiceover handles POST /api/v1/projects/:project_id/voiceover.
func (h *ProjectHandler) CreateVoiceover(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req voiceoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, 1001, err.Error())
		return
	}
	h.enqueue(c, projectID, worker.WorkflowVoiceover, map[string]interface{}{
		"script":        req.Script,
		"tone":          req.Tone,
		"language_code": req.LanguageCode,
	})
}

type captionRequest struct {
	Script       string `json:"script"`
	LanguageCode string `json:"language_code"`
}

// CreateCaptions handles POST /api/v1/projects/:project_id/captions.
func (h *ProjectHandler) CreateCaptions(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req captionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, 1001, err.Error())
		return
	}
	h.enqueue(c, projectID, worker.WorkflowCaption, map[string]interface{}{
		"script":        req.Script,
		"language_code": req.LanguageCode,
	})
}

type captionTranslateRequest struct {
	TargetLanguage string `json:"target_language" binding:"required"`
}

// TranslateCaptions handles POST /api/v1/projects/:project_id/captions/translate.
func (h *ProjectHandler) TranslateCaptions(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req captionTranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, 1001, err.Error())
		return
	}
	h.enqueue(c, projectID, worker.WorkflowCaptionTranslate, map[string]interface{}{
		"target_language": req.TargetLanguage,
	})
}

type dubRequest struct {
	TargetLanguage string `json:"target_language" binding:"required"`
	Voice          string `json:"voice"`
}

// CreateDub handles POST /api/v1/projects/:project_id/dub.
func (h *ProjectHandler) CreateDub(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req dubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, 1001, err.Error())
		return
	}
	h.enqueue(c, projectID, worker.WorkflowDub, map[string]interface{}{
		"target_language": req.TargetLanguage,
		"voice":           req.Voice,
	})
}

func (h *ProjectHandler) enqueue(c *gin.Context, projectID uuid.UUID, workflow string, payload map[string]interface{}) {
	jobID, err := h.service.Enqueue(c.Request.Context(), projectID, workflow, payload)
	if err != nil {
		h.respondServiceError(c, err, "enqueue "+workflow)
		return
	}
	h.respondSuccess(c, http.StatusAccepted, gin.H{
		"job_id":   jobID.String(),
		"workflow": workflow,
		"status":   string(models.JobQueued),
	})
}

// GetCaptions handles GET /api/v1/projects/:project_id/captions. With
// ?format=srt the set is rendered instead of returned as JSON.
func (h *ProjectHandler) GetCaptions(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	if c.Query("format") == "srt" {
		srt, err := h.service.CaptionsSRT(c.Request.Context(), projectID)
		if err != nil {
			h.respondServiceError(c, err, "render captions")
			return
		}
		c.Data(http.StatusOK, "application/x-subrip", []byte(srt))
		return
	}
	set, err := h.service.Captions(c.Request.Context(), projectID)
	if err != nil {
		h.respondServiceError(c, err, "get captions")
		return
	}
	if set == nil {
		h.respondError(c, http.StatusNotFound, 1002, "no caption set")
		return
	}
	h.respondSuccess(c, http.StatusOK, set)
}

// GetJob handles GET /api/v1/jobs/:job_id.
func (h *ProjectHandler) GetJob(c *gin.Context) {
	jobID, ok := parseID(c, "job_id")
	if !ok {
		return
	}
	status, errMsg, err := h.service.JobStatus(c.Request.Context(), jobID)
	if err != nil {
		h.respondServiceError(c, err, "get job")
		return
	}
	data := gin.H{"job_id": jobID.String(), "status": string(status)}
	if errMsg != "" {
		data["error"] = errMsg
	}
	h.respondSuccess(c, http.StatusOK, data)
}
