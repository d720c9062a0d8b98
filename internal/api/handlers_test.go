package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dublab/internal/models"
	"dublab/internal/project"
	"dublab/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubService struct {
	enqueuedWorkflow string
	enqueuedPayload  map[string]interface{}
	enqueueErr       error
	jobStatus        models.JobStatus
	jobErr           error
	captions         *models.CaptionSet
	srt              string
}

func (s *stubService) CreateProject(ctx context.Context, name string, file *multipart.FileHeader) (*models.Project, *models.VersionRecord, error) {
	return nil, nil, fmt.Errorf("not implemented")
}

func (s *stubService) Project(ctx context.Context, id uuid.UUID) (*models.Project, []models.VersionRecord, error) {
	return nil, nil, project.ErrNotFound
}

func (s *stubService) DeleteVersion(ctx context.Context, projectID, versionID uuid.UUID) error {
	return project.ErrNotFound
}

func (s *stubService) Enqueue(ctx context.Context, projectID uuid.UUID, workflow string, payload map[string]interface{}) (uuid.UUID, error) {
	if s.enqueueErr != nil {
		return uuid.Nil, s.enqueueErr
	}
	s.enqueuedWorkflow = workflow
	s.enqueuedPayload = payload
	return uuid.New(), nil
}

func (s *stubService) Captions(ctx context.Context, projectID uuid.UUID) (*models.CaptionSet, error) {
	return s.captions, nil
}

func (s *stubService) CaptionsSRT(ctx context.Context, projectID uuid.UUID) (string, error) {
	if s.srt == "" {
		return "", project.ErrNotFound
	}
	return s.srt, nil
}

func (s *stubService) DownloadURL(ctx context.Context, projectID, versionID uuid.UUID) (string, error) {
	return "https://objects.test/outputs/x.mp4", nil
}

func (s *stubService) JobStatus(ctx context.Context, jobID uuid.UUID) (models.JobStatus, string, error) {
	if s.jobErr != nil {
		return "", "", s.jobErr
	}
	return s.jobStatus, "", nil
}

func doRequest(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(svc, zap.NewNop())
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateDubEnqueuesJob(t *testing.T) {
	svc := &stubService{}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodPost,
		"/api/v1/projects/"+projectID.String()+"/dub",
		`{"target_language":"fr","voice":"female_2"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.enqueuedWorkflow != worker.WorkflowDub {
		t.Fatalf("unexpected workflow %q", svc.enqueuedWorkflow)
	}
	if svc.enqueuedPayload["target_language"] != "fr" {
		t.Fatalf("unexpected payload %v", svc.enqueuedPayload)
	}
	var resp struct {
		Data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != string(models.JobQueued) {
		t.Fatalf("unexpected status %q", resp.Data.Status)
	}
	if _, err := uuid.Parse(resp.Data.JobID); err != nil {
		t.Fatalf("bad job id %q", resp.Data.JobID)
	}
}

func TestCreateDubRequiresTargetLanguage(t *testing.T) {
	svc := &stubService{}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodPost,
		"/api/v1/projects/"+projectID.String()+"/dub", `{"voice":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.enqueuedWorkflow != "" {
		t.Fatal("nothing should be enqueued")
	}
}

func TestCreateVoiceoverRequiresScript(t *testing.T) {
	svc := &stubService{}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodPost,
		"/api/v1/projects/"+projectID.String()+"/voiceover", `{"tone":"warm"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTranslateCaptionsEnqueuesJob(t *testing.T) {
	svc := &stubService{}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodPost,
		"/api/v1/projects/"+projectID.String()+"/captions/translate",
		`{"target_language":"de"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if svc.enqueuedWorkflow != worker.WorkflowCaptionTranslate {
		t.Fatalf("unexpected workflow %q", svc.enqueuedWorkflow)
	}
}

func TestGetCaptionsRendersSRT(t *testing.T) {
	svc := &stubService{srt: "1\n00:00:00,000 --> 00:00:05,000\nhello\n"}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodGet,
		"/api/v1/projects/"+projectID.String()+"/captions?format=srt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-subrip" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Fatalf("SRT body missing cue: %q", rec.Body.String())
	}
}

func TestGetCaptionsNotFound(t *testing.T) {
	svc := &stubService{}
	projectID := uuid.New()

	rec := doRequest(t, svc, http.MethodGet,
		"/api/v1/projects/"+projectID.String()+"/captions", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJobUnknownIDIs404(t *testing.T) {
	svc := &stubService{jobErr: fmt.Errorf("job x: %w", project.ErrNotFound)}

	rec := doRequest(t, svc, http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBadUUIDRejected(t *testing.T) {
	svc := &stubService{}
	rec := doRequest(t, svc, http.MethodGet, "/api/v1/jobs/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
