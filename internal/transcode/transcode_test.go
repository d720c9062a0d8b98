package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dublab/internal/config"

	"go.uber.org/zap"
)

func newFakeTranscoder(out string, calls *[][]string) *Transcoder {
	t := New(config.FFmpegConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}, zap.NewNop())
	t.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, append([]string{name}, args...))
		return []byte(out), nil
	}
	return t
}

func TestProbeDurationParsesOutput(t *testing.T) {
	var calls [][]string
	tc := newFakeTranscoder("12.345\n", &calls)

	d, err := tc.ProbeDuration(context.Background(), "/media/in.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 12.345 {
		t.Fatalf("expected 12.345, got %v", d)
	}
	if calls[0][0] != "ffprobe" {
		t.Fatalf("expected ffprobe invocation, got %v", calls[0])
	}
}

func TestProbeDurationRejectsGarbage(t *testing.T) {
	var calls [][]string
	tc := newFakeTranscoder("N/A\n", &calls)

	if _, err := tc.ProbeDuration(context.Background(), "/media/in.mp4"); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestMuxPinsDurationWithoutShortest(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(outPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	tc := newFakeTranscoder("", &calls)

	if err := tc.MuxReplaceAudio(context.Background(), "/v.mp4", "/a.wav", outPath, 12.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := strings.Join(calls[0], " ")
	if strings.Contains(args, "-shortest") {
		t.Fatal("mux must not use -shortest")
	}
	if !strings.Contains(args, "-t 12") {
		t.Fatalf("mux must pin output duration, args: %s", args)
	}
	if !strings.Contains(args, "-c:v copy") {
		t.Fatalf("mux must copy the video stream, args: %s", args)
	}
}

func TestConcatAudioWritesListFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "merged.wav")

	var listContent string
	tc := New(config.FFmpegConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}, zap.NewNop())
	tc.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, "concat.txt"))
		if err != nil {
			return nil, fmt.Errorf("concat list missing: %w", err)
		}
		listContent = string(data)
		return nil, nil
	}

	if err := tc.ConcatAudio(context.Background(), []string{"/a.wav", "/b.wav"}, outPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(listContent, "file '/a.wav'") || !strings.Contains(listContent, "file '/b.wav'") {
		t.Fatalf("unexpected concat list: %q", listContent)
	}
	if _, err := os.Stat(filepath.Join(dir, "concat.txt")); !os.IsNotExist(err) {
		t.Fatal("concat list must be removed afterwards")
	}
}

func TestTempoChainDecomposesLargeFactors(t *testing.T) {
	got := tempoChain(3.0)
	if got != "atempo=2.0,atempo=1.5" {
		t.Fatalf("unexpected chain: %s", got)
	}
	if got := tempoChain(0.2); got != "atempo=0.5,atempo=0.4" {
		t.Fatalf("unexpected chain: %s", got)
	}
	if got := tempoChain(1.25); got != "atempo=1.25" {
		t.Fatalf("unexpected chain: %s", got)
	}
}

func TestBuildFilterRejectsUnknownKind(t *testing.T) {
	if _, err := buildFilter(FilterKind("reverb"), nil); err == nil {
		t.Fatal("expected error for unknown filter kind")
	}
}
