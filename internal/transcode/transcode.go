// Package transcode wraps ffmpeg and ffprobe for the media operations the
// localization pipeline needs: probing, audio extraction, silence padding,
// concatenation, audio filters, and muxing a replacement audio track.
package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dublab/internal/config"

	"go.uber.org/zap"
)

// Error wraps a failed transcoder operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FilterKind selects an audio transform for ApplyAudioFilter.
type FilterKind string

const (
	FilterTempo  FilterKind = "tempo"  // param "factor": playback speed multiplier
	FilterPitch  FilterKind = "pitch"  // param "factor": pitch shift multiplier
	FilterVolume FilterKind = "volume" // param "db": gain in decibels
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Transcoder shells out to ffmpeg/ffprobe.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
	run         runFunc
}

// New creates a transcoder using the configured binary paths.
func New(cfg config.FFmpegConfig, logger *zap.Logger) *Transcoder {
	return &Transcoder{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		logger:      logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// ProbeDuration returns the container duration of a media file in seconds.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &Error{Op: "probe", Err: fmt.Errorf("ffprobe failed: %w: %s", err, out)}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, &Error{Op: "probe", Err: fmt.Errorf("unparseable duration %q: %w", string(out), err)}
	}
	return duration, nil
}

// ExtractAudio demuxes the audio track of a video into a mono 16 kHz WAV.
func (t *Transcoder) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	out, err := t.run(ctx, t.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	)
	if err != nil {
		return &Error{Op: "extract_audio", Err: fmt.Errorf("ffmpeg failed: %w: %s", err, out)}
	}
	return nil
}

// PadWithSilence appends silence so the output runs exactly targetSeconds.
// Audio is only ever extended; the input is never trimmed.
func (t *Transcoder) PadWithSilence(ctx context.Context, audioPath, outPath string, targetSeconds float64) error {
	out, err := t.run(ctx, t.ffmpegPath,
		"-i", audioPath,
		"-af", "apad",
		"-t", formatSeconds(targetSeconds),
		"-y",
		outPath,
	)
	if err != nil {
		return &Error{Op: "pad_silence", Err: fmt.Errorf("ffmpeg failed: %w: %s", err, out)}
	}
	return nil
}

// PadBySilenceConcat is the fallback padding path: it renders a separate
// silence file and concatenates it after the input with a full re-encode.
func (t *Transcoder) PadBySilenceConcat(ctx context.Context, audioPath, outPath string, padSeconds float64) error {
	dir := filepath.Dir(outPath)
	silencePath := filepath.Join(dir, "silence.wav")
	defer os.Remove(silencePath)

	out, err := t.run(ctx, t.ffmpegPath,
		"-f", "lavfi",
		"-i", "anullsrc=r=22050:cl=mono",
		"-t", formatSeconds(padSeconds),
		"-acodec", "pcm_s16le",
		"-y",
		silencePath,
	)
	if err != nil {
		return &Error{Op: "pad_concat", Err: fmt.Errorf("ffmpeg silence failed: %w: %s", err, out)}
	}

	return t.ConcatAudio(ctx, []string{audioPath, silencePath}, outPath)
}

// ConcatAudio concatenates audio files in order, re-encoding so the output
// container is valid regardless of the inputs' parameters.
func (t *Transcoder) ConcatAudio(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return &Error{Op: "concat", Err: fmt.Errorf("no input files")}
	}

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	var list strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&list, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return &Error{Op: "concat", Err: fmt.Errorf("failed to write concat list: %w", err)}
	}
	defer os.Remove(listPath)

	out, err := t.run(ctx, t.ffmpegPath,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "pcm_s16le",
		"-ar", "22050",
		"-ac", "1",
		"-y",
		outPath,
	)
	if err != nil {
		return &Error{Op: "concat", Err: fmt.Errorf("ffmpeg concat failed: %w: %s", err, out)}
	}
	return nil
}

// MuxReplaceAudio replaces a video's audio track, copying the video stream
// unmodified. The output duration is pinned to videoDurationSeconds rather
// than letting the shortest stream win, so the video is never trimmed by a
// short audio track; an audio tail past the video's end is dropped.
func (t *Transcoder) MuxReplaceAudio(ctx context.Context, videoPath, audioPath, outPath string, videoDurationSeconds float64) error {
	out, err := t.run(ctx, t.ffmpegPath,
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", formatSeconds(videoDurationSeconds),
		"-y",
		outPath,
	)
	if err != nil {
		return &Error{Op: "mux", Err: fmt.Errorf("ffmpeg muxing failed: %w: %s", err, out)}
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		return &Error{Op: "mux", Err: fmt.Errorf("failed to stat output: %w", err)}
	}
	if stat.Size() == 0 {
		return &Error{Op: "mux", Err: fmt.Errorf("output video is empty")}
	}
	return nil
}

// ApplyAudioFilter applies a standalone voice-effect transform.
func (t *Transcoder) ApplyAudioFilter(ctx context.Context, audioPath, outPath string, kind FilterKind, params map[string]float64) error {
	filter, err := buildFilter(kind, params)
	if err != nil {
		return &Error{Op: "filter", Err: err}
	}

	out, err := t.run(ctx, t.ffmpegPath,
		"-i", audioPath,
		"-af", filter,
		"-y",
		outPath,
	)
	if err != nil {
		return &Error{Op: "filter", Err: fmt.Errorf("ffmpeg filter failed: %w: %s", err, out)}
	}
	return nil
}

func buildFilter(kind FilterKind, params map[string]float64) (string, error) {
	switch kind {
	case FilterTempo:
		factor := params["factor"]
		if factor <= 0 {
			return "", fmt.Errorf("tempo filter requires a positive factor")
		}
		return tempoChain(factor), nil
	case FilterPitch:
		factor := params["factor"]
		if factor <= 0 {
			return "", fmt.Errorf("pitch filter requires a positive factor")
		}
		return fmt.Sprintf("asetrate=44100*%s,aresample=44100", formatSeconds(factor)), nil
	case FilterVolume:
		return fmt.Sprintf("volume=%sdB", formatSeconds(params["db"])), nil
	default:
		return "", fmt.Errorf("unsupported filter kind: %s", kind)
	}
}

// tempoChain builds an atempo chain; a single atempo only accepts factors in
// [0.5, 2.0], so factors outside that range are decomposed into stages.
func tempoChain(factor float64) string {
	var stages []string
	for factor > 2.0 {
		stages = append(stages, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		stages = append(stages, "atempo=0.5")
		factor /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%s", formatSeconds(factor)))
	return strings.Join(stages, ",")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
