package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dublab/internal/transcode"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyVoiceEffect runs a single audio filter over a stored audio object and
// uploads the result as a new object. It sits outside the project workflows:
// no lock, no version record, just audio in and audio out.
func (o *Orchestrator) ApplyVoiceEffect(ctx context.Context, audioKey string, kind transcode.FilterKind, params map[string]float64) (string, error) {
	workdir, err := os.MkdirTemp("", "effect-")
	if err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	inPath := filepath.Join(workdir, "in.wav")
	if err := o.storage.DownloadToFile(ctx, audioKey, inPath); err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	outPath := filepath.Join(workdir, "out.wav")
	if err := o.transcoder.ApplyAudioFilter(ctx, inPath, outPath, kind, params); err != nil {
		return "", err
	}

	outKey := fmt.Sprintf("effects/%s-%s.wav", kind, uuid.New())
	if _, err := o.storage.UploadFile(ctx, outKey, outPath, "audio/wav"); err != nil {
		return "", fmt.Errorf("upload filtered audio: %w", err)
	}
	o.logger.Info("voice effect applied",
		zap.String("filter", string(kind)),
		zap.String("source_key", audioKey),
		zap.String("output_key", outKey))
	return outKey, nil
}
