// Package reconcile adjusts synthesized audio to match a target duration.
// Audio is only ever extended with silence, never truncated, so synthesized
// speech is never cut off.
package reconcile

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"
)

// Transcoder is the padding surface the reconciler drives.
type Transcoder interface {
	PadWithSilence(ctx context.Context, audioPath, outPath string, targetSeconds float64) error
	PadBySilenceConcat(ctx context.Context, audioPath, outPath string, padSeconds float64) error
}

// Padding returns the seconds of silence needed to stretch producedSeconds
// to targetSeconds. It is never negative: audio that already meets or
// exceeds the target needs no action.
func Padding(producedSeconds, targetSeconds float64) float64 {
	p := targetSeconds - producedSeconds
	if p < 0 {
		return 0
	}
	return p
}

// Result describes one reconciliation.
type Result struct {
	Path           string
	PaddingSeconds float64
	// Degraded is set when every padding strategy failed and the unpadded
	// audio was kept. Some duration mismatch is preferable to no artifact.
	Degraded bool
}

// Reconciler pads audio files to a target duration, falling back through
// padding strategies: silence-filter padding, then silence-concat re-encode,
// then keeping the unpadded audio.
type Reconciler struct {
	transcoder Transcoder
	logger     *zap.Logger
}

// New creates a reconciler.
func New(transcoder Transcoder, logger *zap.Logger) *Reconciler {
	return &Reconciler{transcoder: transcoder, logger: logger}
}

// EnsureDuration returns a path to audio whose duration equals targetSeconds
// when padding is needed and possible. When the produced audio already meets
// or exceeds the target the input path is returned untouched.
func (r *Reconciler) EnsureDuration(ctx context.Context, audioPath string, producedSeconds, targetSeconds float64) Result {
	padding := Padding(producedSeconds, targetSeconds)
	if padding == 0 {
		return Result{Path: audioPath}
	}

	dir := filepath.Dir(audioPath)
	paddedPath := filepath.Join(dir, "padded.wav")

	if err := r.transcoder.PadWithSilence(ctx, audioPath, paddedPath, targetSeconds); err == nil {
		return Result{Path: paddedPath, PaddingSeconds: padding}
	} else {
		r.logger.Warn("Silence-filter padding failed, trying concat re-encode",
			zap.String("audio", audioPath),
			zap.Error(err),
		)
	}

	if err := r.transcoder.PadBySilenceConcat(ctx, audioPath, paddedPath, padding); err == nil {
		return Result{Path: paddedPath, PaddingSeconds: padding}
	} else {
		r.logger.Warn("Concat padding failed, keeping unpadded audio",
			zap.String("audio", audioPath),
			zap.Float64("missing_seconds", padding),
			zap.Error(err),
		)
	}

	return Result{Path: audioPath, Degraded: true}
}
