package caption

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"dublab/internal/models"

	"go.uber.org/zap"
)

func wordRun(n int, startSeconds, perWord float64) []models.Word {
	words := make([]models.Word, n)
	for i := range words {
		start := startSeconds + float64(i)*perWord
		words[i] = models.Word{
			Text:         fmt.Sprintf("w%d", i),
			StartSeconds: start,
			EndSeconds:   start + perWord,
		}
	}
	return words
}

func TestFromWordsClosesAtEightWords(t *testing.T) {
	set := FromWords(wordRun(10, 0, 0.3), "en")
	if len(set.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(set.Segments))
	}
	first := set.Segments[0]
	if len(strings.Fields(first.Text)) != 8 {
		t.Fatalf("first segment should hold 8 words, got %q", first.Text)
	}
}

func TestFromWordsClosesAtFiveSeconds(t *testing.T) {
	// Slow words: 2s each, so the 5-second cap closes segments before the
	// word cap does.
	set := FromWords(wordRun(6, 0, 2.0), "en")
	for _, seg := range set.Segments {
		if len(strings.Fields(seg.Text)) > 3 {
			t.Fatalf("segment packed too many slow words: %q", seg.Text)
		}
	}
}

func TestFromWordsSegmentsOrderedNonOverlapping(t *testing.T) {
	set := FromWords(wordRun(25, 1.5, 0.4), "en")
	for i := 1; i < len(set.Segments); i++ {
		if set.Segments[i].StartSeconds < set.Segments[i-1].EndSeconds {
			t.Fatalf("segments overlap at %d", i)
		}
	}
}

func TestFromScriptCoversExactlyDuration(t *testing.T) {
	script := "The first sentence of the script contains quite a few words. " +
		"The second sentence keeps going with more of the same material. " +
		"The third sentence follows along at a similar length as well. " +
		"The fourth sentence finally closes out the narration script."
	set, err := FromScript(script, 20.0, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	segs := set.Segments
	if len(segs) == 0 {
		t.Fatal("no segments")
	}
	if segs[0].StartSeconds != 0 {
		t.Fatalf("first segment must start at 0, got %v", segs[0].StartSeconds)
	}
	if segs[len(segs)-1].EndSeconds != 20.0 {
		t.Fatalf("last segment must end at duration, got %v", segs[len(segs)-1].EndSeconds)
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartSeconds != segs[i-1].EndSeconds {
			t.Fatalf("segments not contiguous at %d", i)
		}
	}
	for _, s := range segs {
		if len(s.Text) > maxScriptCaptionChars {
			t.Fatalf("caption over %d chars: %q", maxScriptCaptionChars, s.Text)
		}
	}
}

func TestFromScriptRejectsEmptyOrNonPositiveDuration(t *testing.T) {
	if _, err := FromScript("", 10, "en"); err == nil {
		t.Fatal("expected error for empty script")
	}
	if _, err := FromScript("Hello.", 0, "en"); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestFromTranscriptTextEvenDistribution(t *testing.T) {
	// 4 sentences over 20s -> four 5-second captions.
	text := "One sentence. Two sentence. Three sentence. Four sentence."
	set := FromTranscriptText(text, 20.0, "en")
	if len(set.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(set.Segments))
	}
	for _, seg := range set.Segments {
		if math.Abs((seg.EndSeconds-seg.StartSeconds)-5.0) > 1e-9 {
			t.Fatalf("expected 5s captions, got %v", seg.EndSeconds-seg.StartSeconds)
		}
	}
}

type fakeTranslator struct {
	failOn map[string]bool
}

func (f *fakeTranslator) Translate(ctx context.Context, texts []string, src, dst string) ([]string, error) {
	out := make([]string, len(texts))
	for i, s := range texts {
		if f.failOn[s] {
			return nil, fmt.Errorf("backend refused %q", s)
		}
		out[i] = dst + ":" + s
	}
	return out, nil
}

func TestTranslateSetKeepsTimingAndDegradesPerSegment(t *testing.T) {
	set := models.CaptionSet{
		LanguageCode: "en",
		Segments: []models.CaptionSegment{
			{StartSeconds: 0, EndSeconds: 2, Text: "hello"},
			{StartSeconds: 2, EndSeconds: 4, Text: "stubborn"},
			{StartSeconds: 4, EndSeconds: 6, Text: "world"},
		},
	}
	tr := &fakeTranslator{failOn: map[string]bool{"stubborn": true}}

	out, degraded := TranslateSet(context.Background(), tr, set, "fr", zap.NewNop())
	if degraded != 1 {
		t.Fatalf("expected 1 degraded segment, got %d", degraded)
	}
	if out.LanguageCode != "fr" {
		t.Fatalf("unexpected language: %s", out.LanguageCode)
	}
	if out.Segments[0].Text != "fr:hello" || out.Segments[2].Text != "fr:world" {
		t.Fatalf("translated segments wrong: %+v", out.Segments)
	}
	if out.Segments[1].Text != "stubborn" {
		t.Fatalf("failed segment must keep original text, got %q", out.Segments[1].Text)
	}
	for i := range out.Segments {
		if out.Segments[i].StartSeconds != set.Segments[i].StartSeconds ||
			out.Segments[i].EndSeconds != set.Segments[i].EndSeconds {
			t.Fatalf("timing changed on segment %d", i)
		}
	}
}

func TestRenderSRT(t *testing.T) {
	set := models.CaptionSet{
		Segments: []models.CaptionSegment{
			{StartSeconds: 0, EndSeconds: 2.5, Text: "Hello"},
			{StartSeconds: 2.5, EndSeconds: 61.25, Text: "World"},
		},
	}
	srt := RenderSRT(set)
	if !strings.Contains(srt, "1\n00:00:00,000 --> 00:00:02,500\nHello") {
		t.Fatalf("bad first cue:\n%s", srt)
	}
	if !strings.Contains(srt, "2\n00:00:02,500 --> 00:01:01,250\nWorld") {
		t.Fatalf("bad second cue:\n%s", srt)
	}
}
