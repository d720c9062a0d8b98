package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dublab/internal/models"
	"dublab/internal/textchunk"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// synthesizeScript chunks a script to the gateway's input limit, synthesizes
// every chunk and joins the pieces into a single audio file under workdir.
// No chunk result is kept unless all chunks succeed.
func (o *Orchestrator) synthesizeScript(ctx context.Context, workdir, script string, req models.SynthesisRequest) (string, error) {
	chunks := textchunk.Chunk(script, o.gateway.MaxSynthesisInput())
	if len(chunks) == 0 {
		return "", &SourceMissingError{What: "script text"}
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		creq := req
		creq.Text = chunk
		audio, backend, err := o.gateway.Synthesize(ctx, creq)
		if err != nil {
			return "", fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		part := filepath.Join(workdir, fmt.Sprintf("chunk_%03d.wav", i))
		if err := os.WriteFile(part, audio, 0o644); err != nil {
			return "", fmt.Errorf("write chunk %d: %w", i, err)
		}
		o.logger.Debug("chunk synthesized",
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.String("backend", backend))
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	joined := filepath.Join(workdir, "voice.wav")
	if err := o.transcoder.ConcatAudio(ctx, parts, joined); err != nil {
		return "", fmt.Errorf("join synthesized chunks: %w", err)
	}
	return joined, nil
}

// fetchOriginalVideo loads the project's original version and downloads its
// video into workdir. Returns the record, the local path and the probed
// duration.
func (o *Orchestrator) fetchOriginalVideo(ctx context.Context, workdir string, projectID uuid.UUID) (*models.VersionRecord, string, float64, error) {
	original, err := o.store.OriginalVersion(ctx, projectID)
	if err != nil {
		return nil, "", 0, fmt.Errorf("load original version: %w", err)
	}
	if original == nil || original.Asset.Kind != models.AssetVideo {
		return nil, "", 0, &SourceMissingError{What: "original video"}
	}
	videoPath := filepath.Join(workdir, "source"+filepath.Ext(original.Asset.Key))
	if err := o.storage.DownloadToFile(ctx, original.Asset.Key, videoPath); err != nil {
		return nil, "", 0, fmt.Errorf("download original video: %w", err)
	}
	duration, err := o.transcoder.ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, "", 0, fmt.Errorf("probe original video: %w", err)
	}
	return original, videoPath, duration, nil
}
