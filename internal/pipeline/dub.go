package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"dublab/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dub re-voices the original video in another language: transcribe, translate,
// synthesize at a speech rate computed to fit the video, reconcile the
// duration and mux. A successful run appends exactly one dubbed version.
// Translation failure is fatal here; a silent dub in the wrong language is
// worse than no dub.
func (o *Orchestrator) Dub(ctx context.Context, projectID uuid.UUID, payload models.DubPayload) (*RunResult, error) {
	unlock := o.locks.Lock(projectID)
	defer unlock()

	targetLang := models.NormalizeLanguage(payload.TargetLanguage)
	if targetLang == "" {
		return nil, &SourceMissingError{What: "target language"}
	}

	workdir, err := os.MkdirTemp("", "dub-")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	runID := uuid.New()
	logger := o.logger.With(
		zap.String("workflow", "dub"),
		zap.String("project_id", projectID.String()),
		zap.String("run_id", runID.String()),
		zap.String("target_language", targetLang))

	original, videoPath, videoDuration, err := o.fetchOriginalVideo(ctx, workdir, projectID)
	if err != nil {
		return nil, err
	}

	srcAudio := filepath.Join(workdir, "speech.wav")
	if err := o.transcoder.ExtractAudio(ctx, videoPath, srcAudio); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	tmpKey := fmt.Sprintf("tmp/%s/%s.wav", projectID, runID)
	if _, err := o.storage.UploadFile(ctx, tmpKey, srcAudio, "audio/wav"); err != nil {
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

	transcript, err := o.gateway.Transcribe(ctx, audioURL, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript.FullText) == "" {
		return nil, &SourceMissingError{What: "speech in original audio"}
	}

	translated, err := o.gateway.Translate(ctx, []string{transcript.FullText}, transcript.LanguageCode, targetLang)
	if err != nil {
		return nil, fmt.Errorf("translate transcript: %w", err)
	}
	script := translated[0]

	rate := SpeechRate(utf8.RuneCountInString(script), videoDuration)
	logger.Info("speech rate computed",
		zap.Int("chars", utf8.RuneCountInString(script)),
		zap.Float64("video_seconds", videoDuration),
		zap.Float64("rate", rate))

	audioPath, err := o.synthesizeScript(ctx, workdir, script, models.SynthesisRequest{
		Voice:                 payload.Voice,
		LanguageCode:          targetLang,
		TargetDurationSeconds: videoDuration,
		SpeechRate:            rate,
	})
	if err != nil {
		return nil, err
	}
	audioDuration, err := o.transcoder.ProbeDuration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("probe synthesized audio: %w", err)
	}

	result := &RunResult{}
	rec := o.reconciler.EnsureDuration(ctx, audioPath, audioDuration, videoDuration)
	if rec.Degraded {
		result.Degradations = append(result.Degradations, "dub shorter than video, padding failed")
	}
	if audioDuration > videoDuration {
		result.Degradations = append(result.Degradations, "dub longer than video, tail dropped at mux")
		logger.Warn("dub audio exceeds video duration",
			zap.Float64("audio_seconds", audioDuration),
			zap.Float64("video_seconds", videoDuration))
	}

	outPath := filepath.Join(workdir, "dubbed.mp4")
	if err := o.transcoder.MuxReplaceAudio(ctx, videoPath, rec.Path, outPath, videoDuration); err != nil {
		audioKey := fmt.Sprintf("dubs/%s/%s.wav", projectID, runID)
		if _, upErr := o.storage.UploadFile(ctx, audioKey, rec.Path, "audio/wav"); upErr != nil {
			logger.Error("salvage upload failed", zap.Error(upErr))
		} else {
			logger.Warn("mux failed, dub audio retained as standalone artifact", zap.String("key", audioKey))
		}
		return nil, fmt.Errorf("mux dub: %w", err)
	}

	outDuration, err := o.transcoder.ProbeDuration(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("probe muxed video: %w", err)
	}
	if original.Asset.DurationSeconds > 0 && math.Abs(outDuration-original.Asset.DurationSeconds) >= 1.0 {
		logger.Warn("output duration drifted from original",
			zap.Float64("output_seconds", outDuration),
			zap.Float64("original_seconds", original.Asset.DurationSeconds))
	}
	outKey := fmt.Sprintf("outputs/%s/%s.mp4", projectID, runID)
	if _, err := o.storage.UploadFile(ctx, outKey, outPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("upload dubbed video: %w", err)
	}

	version := models.VersionRecord{
		ID:        runID,
		ProjectID: projectID,
		Asset: models.MediaAsset{
			Key:             outKey,
			DurationSeconds: outDuration,
			Kind:            models.AssetVideo,
		},
		Kind:         models.VersionDubbed,
		LanguageCode: targetLang,
		ScriptText:   script,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.AppendVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("append dubbed version: %w", err)
	}
	logger.Info("dub appended",
		zap.String("key", outKey),
		zap.Float64("duration_seconds", outDuration),
		zap.Strings("degradations", result.Degradations))
	result.Version = &version
	return result, nil
}
