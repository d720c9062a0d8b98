package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"dublab/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Voiceover synthesizes speech for a script and, when the project has an
// original video, replaces the video's audio track with it. The resulting
// asset is appended as a new version; the version list is never rewritten.
//
// Synthesis failures leave the project untouched. A mux failure after
// successful synthesis keeps the audio as a standalone artifact but appends
// no video version.
func (o *Orchestrator) Voiceover(ctx context.Context, projectID uuid.UUID, payload models.VoiceoverPayload) (*RunResult, error) {
	unlock := o.locks.Lock(projectID)
	defer unlock()

	if payload.Script == "" {
		return nil, &SourceMissingError{What: "voiceover script"}
	}
	lang := models.NormalizeLanguage(payload.LanguageCode)

	workdir, err := os.MkdirTemp("", "voiceover-")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	runID := uuid.New()
	logger := o.logger.With(
		zap.String("workflow", "voiceover"),
		zap.String("project_id", projectID.String()),
		zap.String("run_id", runID.String()))

	audioPath, err := o.synthesizeScript(ctx, workdir, payload.Script, models.SynthesisRequest{
		Voice:        payload.Tone,
		LanguageCode: lang,
	})
	if err != nil {
		return nil, err
	}
	audioDuration, err := o.transcoder.ProbeDuration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("probe synthesized audio: %w", err)
	}

	result := &RunResult{}

	original, videoPath, videoDuration, err := o.fetchOriginalVideo(ctx, workdir, projectID)
	var missing *SourceMissingError
	if errors.As(err, &missing) {
		// Audio-only project: the voiceover itself is the deliverable.
		return o.appendAudioVersion(ctx, projectID, runID, audioPath, audioDuration, lang, payload, result, logger)
	}
	if err != nil {
		return nil, err
	}

	rec := o.reconciler.EnsureDuration(ctx, audioPath, audioDuration, videoDuration)
	if rec.Degraded {
		result.Degradations = append(result.Degradations, "audio shorter than video, padding failed")
	}
	if audioDuration > videoDuration {
		result.Degradations = append(result.Degradations, "audio longer than video, tail dropped at mux")
		logger.Warn("synthesized audio exceeds video duration",
			zap.Float64("audio_seconds", audioDuration),
			zap.Float64("video_seconds", videoDuration))
	}

	outPath := filepath.Join(workdir, "voiceover.mp4")
	if err := o.transcoder.MuxReplaceAudio(ctx, videoPath, rec.Path, outPath, videoDuration); err != nil {
		// Keep the synthesized audio so the work is not lost.
		audioKey := fmt.Sprintf("voiceovers/%s/%s.wav", projectID, runID)
		if _, upErr := o.storage.UploadFile(ctx, audioKey, rec.Path, "audio/wav"); upErr != nil {
			logger.Error("salvage upload failed", zap.Error(upErr))
		} else {
			logger.Warn("mux failed, audio retained as standalone artifact", zap.String("key", audioKey))
		}
		return nil, fmt.Errorf("mux voiceover: %w", err)
	}

	outDuration, err := o.transcoder.ProbeDuration(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("probe muxed video: %w", err)
	}
	if math.Abs(outDuration-original.Asset.DurationSeconds) >= 1.0 && original.Asset.DurationSeconds > 0 {
		logger.Warn("output duration drifted from original",
			zap.Float64("output_seconds", outDuration),
			zap.Float64("original_seconds", original.Asset.DurationSeconds))
	}

	outKey := fmt.Sprintf("outputs/%s/%s.mp4", projectID, runID)
	if _, err := o.storage.UploadFile(ctx, outKey, outPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("upload voiceover video: %w", err)
	}

	version := models.VersionRecord{
		ID:        runID,
		ProjectID: projectID,
		Asset: models.MediaAsset{
			Key:             outKey,
			DurationSeconds: outDuration,
			Kind:            models.AssetVideo,
		},
		Kind:         models.VersionVoiceover,
		LanguageCode: lang,
		Tone:         payload.Tone,
		ScriptText:   payload.Script,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.AppendVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("append voiceover version: %w", err)
	}
	logger.Info("voiceover appended",
		zap.String("key", outKey),
		zap.Float64("duration_seconds", outDuration),
		zap.Strings("degradations", result.Degradations))
	result.Version = &version
	return result, nil
}

func (o *Orchestrator) appendAudioVersion(
	ctx context.Context,
	projectID, runID uuid.UUID,
	audioPath string,
	audioDuration float64,
	lang string,
	payload models.VoiceoverPayload,
	result *RunResult,
	logger *zap.Logger,
) (*RunResult, error) {
	audioKey := fmt.Sprintf("voiceovers/%s/%s.wav", projectID, runID)
	if _, err := o.storage.UploadFile(ctx, audioKey, audioPath, "audio/wav"); err != nil {
		return nil, fmt.Errorf("upload voiceover audio: %w", err)
	}
	version := models.VersionRecord{
		ID:        runID,
		ProjectID: projectID,
		Asset: models.MediaAsset{
			Key:             audioKey,
			DurationSeconds: audioDuration,
			Kind:            models.AssetAudio,
		},
		Kind:         models.VersionVoiceover,
		LanguageCode: lang,
		Tone:         payload.Tone,
		ScriptText:   payload.Script,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.AppendVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("append voiceover version: %w", err)
	}
	logger.Info("voiceover audio appended", zap.String("key", audioKey))
	result.Version = &version
	return result, nil
}
