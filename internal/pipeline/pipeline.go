// Package pipeline implements the localization workflows: Voiceover,
// Caption and Dub. Each run is a single linear pipeline over the provider
// gateway, the transcoder and the project store, serialized per project.
package pipeline

import (
	"context"
	"fmt"

	"dublab/internal/models"
	"dublab/internal/reconcile"
	"dublab/internal/storage"
	"dublab/internal/transcode"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the provider surface the workflows consume.
type Gateway interface {
	MaxSynthesisInput() int
	Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, string, error)
	Transcribe(ctx context.Context, audioURL, languageHint string) (*models.Transcript, error)
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// Transcoder is the media surface the workflows consume.
type Transcoder interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	ConcatAudio(ctx context.Context, paths []string, outPath string) error
	MuxReplaceAudio(ctx context.Context, videoPath, audioPath, outPath string, videoDurationSeconds float64) error
	ApplyAudioFilter(ctx context.Context, audioPath, outPath string, kind transcode.FilterKind, params map[string]float64) error
}

// Reconciler pads produced audio toward a target duration.
type Reconciler interface {
	EnsureDuration(ctx context.Context, audioPath string, producedSeconds, targetSeconds float64) reconcile.Result
}

// Store is the project state the workflows read and append to.
type Store interface {
	OriginalVersion(ctx context.Context, projectID uuid.UUID) (*models.VersionRecord, error)
	AppendVersion(ctx context.Context, rec models.VersionRecord) error
	ReplaceCaptionSet(ctx context.Context, projectID uuid.UUID, set models.CaptionSet) error
	CaptionSet(ctx context.Context, projectID uuid.UUID) (*models.CaptionSet, error)
}

// Locks serializes runs against the same project.
type Locks interface {
	Lock(projectID uuid.UUID) func()
}

// SourceMissingError means a required input was absent. Fatal.
type SourceMissingError struct {
	What string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("required source missing: %s", e.What)
}

// RunResult reports one completed workflow run.
type RunResult struct {
	Version    *models.VersionRecord
	CaptionSet *models.CaptionSet
	// Degradations lists non-essential sub-steps that failed and were
	// substituted with a best-effort fallback.
	Degradations []string
}

// Orchestrator coordinates the three localization workflows.
type Orchestrator struct {
	gateway    Gateway
	transcoder Transcoder
	reconciler Reconciler
	store      Store
	storage    storage.ObjectStorage
	locks      Locks
	logger     *zap.Logger
}

// New creates an orchestrator.
func New(
	gateway Gateway,
	transcoder Transcoder,
	reconciler Reconciler,
	store Store,
	objects storage.ObjectStorage,
	locks Locks,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		gateway:    gateway,
		transcoder: transcoder,
		reconciler: reconciler,
		store:      store,
		storage:    objects,
		locks:      locks,
		logger:     logger,
	}
}
