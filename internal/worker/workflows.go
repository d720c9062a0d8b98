package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"dublab/internal/models"
	"dublab/internal/pipeline"

	"github.com/google/uuid"
)

// Workflow names double as queue routing-key suffixes.
const (
	WorkflowVoiceover        = "voiceover"
	WorkflowCaption          = "caption"
	WorkflowCaptionTranslate = "caption_translate"
	WorkflowDub              = "dub"
)

// Runner is the orchestrator surface the processors drive.
type Runner interface {
	Voiceover(ctx context.Context, projectID uuid.UUID, payload models.VoiceoverPayload) (*pipeline.RunResult, error)
	Caption(ctx context.Context, projectID uuid.UUID, payload models.CaptionPayload) (*pipeline.RunResult, error)
	TranslateCaptions(ctx context.Context, projectID uuid.UUID, targetLanguage string) (*pipeline.RunResult, error)
	Dub(ctx context.Context, projectID uuid.UUID, payload models.DubPayload) (*pipeline.RunResult, error)
}

// decodePayload re-marshals the loosely typed message payload into the
// workflow's payload struct.
func decodePayload(msg models.JobMessage, out interface{}) error {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Workflow, err)
	}
	return nil
}

type voiceoverProcessor struct {
	runner Runner
}

// NewVoiceoverProcessor builds the processor for voiceover jobs.
func NewVoiceoverProcessor(runner Runner) WorkflowProcessor {
	return &voiceoverProcessor{runner: runner}
}

func (p *voiceoverProcessor) Name() string { return WorkflowVoiceover }

func (p *voiceoverProcessor) Process(ctx context.Context, projectID uuid.UUID, msg models.JobMessage) error {
	var payload models.VoiceoverPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	_, err := p.runner.Voiceover(ctx, projectID, payload)
	return err
}

type captionProcessor struct {
	runner Runner
}

// NewCaptionProcessor builds the processor for caption jobs.
func NewCaptionProcessor(runner Runner) WorkflowProcessor {
	return &captionProcessor{runner: runner}
}

func (p *captionProcessor) Name() string { return WorkflowCaption }

func (p *captionProcessor) Process(ctx context.Context, projectID uuid.UUID, msg models.JobMessage) error {
	var payload models.CaptionPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	_, err := p.runner.Caption(ctx, projectID, payload)
	return err
}

type captionTranslateProcessor struct {
	runner Runner
}

// NewCaptionTranslateProcessor builds the processor for caption-translation jobs.
func NewCaptionTranslateProcessor(runner Runner) WorkflowProcessor {
	return &captionTranslateProcessor{runner: runner}
}

func (p *captionTranslateProcessor) Name() string { return WorkflowCaptionTranslate }

func (p *captionTranslateProcessor) Process(ctx context.Context, projectID uuid.UUID, msg models.JobMessage) error {
	var payload struct {
		TargetLanguage string `json:"target_language"`
	}
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	_, err := p.runner.TranslateCaptions(ctx, projectID, payload.TargetLanguage)
	return err
}

type dubProcessor struct {
	runner Runner
}

// NewDubProcessor builds the processor for dub jobs.
func NewDubProcessor(runner Runner) WorkflowProcessor {
	return &dubProcessor{runner: runner}
}

func (p *dubProcessor) Name() string { return WorkflowDub }

func (p *dubProcessor) Process(ctx context.Context, projectID uuid.UUID, msg models.JobMessage) error {
	var payload models.DubPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	_, err := p.runner.Dub(ctx, projectID, payload)
	return err
}
