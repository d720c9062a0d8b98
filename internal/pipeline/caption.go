package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dublab/internal/caption"
	"dublab/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// presignExpiry bounds how long transcription backends can fetch extracted
// audio. Async backends can take most of it on long clips.
const presignExpiry = 2 * time.Hour

// Caption builds the project's caption set. With a script it distributes the
// script's sentences over the video duration; without one it transcribes the
// video's audio and aligns on word timestamps when the backend returns them.
// The set replaces the previous one; caption runs never touch the version
// history.
func (o *Orchestrator) Caption(ctx context.Context, projectID uuid.UUID, payload models.CaptionPayload) (*RunResult, error) {
	unlock := o.locks.Lock(projectID)
	defer unlock()

	lang := models.NormalizeLanguage(payload.LanguageCode)
	logger := o.logger.With(
		zap.String("workflow", "caption"),
		zap.String("project_id", projectID.String()))

	var set models.CaptionSet
	if strings.TrimSpace(payload.Script) != "" {
		original, err := o.store.OriginalVersion(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("load original version: %w", err)
		}
		if original == nil || original.Asset.DurationSeconds <= 0 {
			return nil, &SourceMissingError{What: "original media with known duration"}
		}
		set, err = caption.FromScript(payload.Script, original.Asset.DurationSeconds, lang)
		if err != nil {
			return nil, fmt.Errorf("align script captions: %w", err)
		}
	} else {
		transcript, err := o.transcribeOriginal(ctx, projectID, lang, logger)
		if err != nil {
			return nil, err
		}
		if len(transcript.Words) > 0 {
			set = caption.FromWords(transcript.Words, lang)
		} else {
			if transcript.FullText == "" {
				return nil, &SourceMissingError{What: "speech in original audio"}
			}
			logger.Info("no word timestamps, distributing transcript sentences")
			set = caption.FromTranscriptText(transcript.FullText, transcript.DurationSeconds, lang)
		}
	}

	if err := o.storeCaptionSet(ctx, projectID, set, logger); err != nil {
		return nil, err
	}
	return &RunResult{CaptionSet: &set}, nil
}

// TranslateCaptions rewrites the active caption set in targetLanguage.
// Segments whose translation fails keep their original text; timing is never
// modified.
func (o *Orchestrator) TranslateCaptions(ctx context.Context, projectID uuid.UUID, targetLanguage string) (*RunResult, error) {
	unlock := o.locks.Lock(projectID)
	defer unlock()

	lang := models.NormalizeLanguage(targetLanguage)
	logger := o.logger.With(
		zap.String("workflow", "caption_translate"),
		zap.String("project_id", projectID.String()))

	set, err := o.store.CaptionSet(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load caption set: %w", err)
	}
	if set == nil {
		return nil, &SourceMissingError{What: "caption set"}
	}

	translated, degraded := caption.TranslateSet(ctx, o.gateway, *set, lang, logger)
	if err := o.storeCaptionSet(ctx, projectID, translated, logger); err != nil {
		return nil, err
	}
	result := &RunResult{CaptionSet: &translated}
	if degraded > 0 {
		result.Degradations = append(result.Degradations,
			fmt.Sprintf("%d caption segments kept original text", degraded))
	}
	return result, nil
}

// transcribeOriginal extracts the original video's audio, stages it in object
// storage for the transcription backend, and returns the transcript. The
// staged object and local files are removed on every path.
func (o *Orchestrator) transcribeOriginal(ctx context.Context, projectID uuid.UUID, languageHint string, logger *zap.Logger) (*models.Transcript, error) {
	workdir, err := os.MkdirTemp("", "transcribe-")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	_, videoPath, videoDuration, err := o.fetchOriginalVideo(ctx, workdir, projectID)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(workdir, "speech.wav")
	if err := o.transcoder.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	tmpKey := fmt.Sprintf("tmp/%s/%s.wav", projectID, uuid.New())
	if _, err := o.storage.UploadFile(ctx, tmpKey, audioPath, "audio/wav"); err != nil {
		return nil, fmt.Errorf("stage audio for transcription: %w", err)
	}
	defer func() {
		if err := o.storage.DeleteObject(context.WithoutCancel(ctx), tmpKey); err != nil {
			logger.Warn("remove staged audio", zap.String("key", tmpKey), zap.Error(err))
		}
	}()

	audioURL, err := o.storage.PresignedGetURL(ctx, tmpKey, presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign staged audio: %w", err)
	}

	transcript, err := o.gateway.Transcribe(ctx, audioURL, languageHint)
	if err != nil {
		return nil, err
	}
	if transcript.DurationSeconds <= 0 {
		transcript.DurationSeconds = videoDuration
	}
	return transcript, nil
}

// storeCaptionSet replaces the active set and refreshes the rendered SRT
// object alongside it.
func (o *Orchestrator) storeCaptionSet(ctx context.Context, projectID uuid.UUID, set models.CaptionSet, logger *zap.Logger) error {
	if err := o.store.ReplaceCaptionSet(ctx, projectID, set); err != nil {
		return fmt.Errorf("store caption set: %w", err)
	}
	srt := caption.RenderSRT(set)
	srtKey := fmt.Sprintf("captions/%s.srt", projectID)
	if err := o.storage.PutObject(ctx, srtKey, strings.NewReader(srt), int64(len(srt)), "application/x-subrip"); err != nil {
		// The database copy is authoritative; a stale SRT is tolerable.
		logger.Warn("upload rendered captions", zap.String("key", srtKey), zap.Error(err))
	}
	logger.Info("caption set stored",
		zap.Int("segments", len(set.Segments)),
		zap.String("language", set.LanguageCode))
	return nil
}
