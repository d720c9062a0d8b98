// Package caption produces timed caption sets, either from transcription
// word timestamps or by distributing script text across a known duration.
package caption

import (
	"fmt"
	"strings"

	"dublab/internal/models"
	"dublab/internal/textchunk"
)

const (
	// maxWordsPerSegment and maxSegmentSeconds bound a caption built from
	// word timestamps; whichever limit is hit first closes the segment.
	maxWordsPerSegment = 8
	maxSegmentSeconds  = 5.0

	// maxScriptCaptionChars caps one caption when aligning script text.
	maxScriptCaptionChars = 80
)

// FromWords groups consecutive transcribed words into caption segments.
// A segment closes after eight words, five seconds, or when the words run
// out, whichever comes first.
func FromWords(words []models.Word, languageCode string) models.CaptionSet {
	set := models.CaptionSet{LanguageCode: languageCode}

	var (
		texts []string
		start float64
		end   float64
	)
	flush := func() {
		if len(texts) == 0 {
			return
		}
		set.Segments = append(set.Segments, models.CaptionSegment{
			StartSeconds: start,
			EndSeconds:   end,
			Text:         strings.Join(texts, " "),
		})
		texts = nil
	}

	for _, w := range words {
		if len(texts) == 0 {
			start = w.StartSeconds
		}
		texts = append(texts, w.Text)
		end = w.EndSeconds
		if len(texts) >= maxWordsPerSegment || end-start >= maxSegmentSeconds {
			flush()
		}
	}
	flush()

	return set
}

// FromTranscriptText is the alignment fallback for transcripts without
// word-level timestamps: the transcript is split into sentences which are
// distributed evenly over the estimated duration.
func FromTranscriptText(text string, durationSeconds float64, languageCode string) models.CaptionSet {
	set, _ := distribute(textchunk.SplitSentences(text), durationSeconds, languageCode)
	return set
}

// FromScript aligns a script over a known duration: the script is split into
// sentence-like chunks of at most 80 characters and segment i covers
// [i*D/N, (i+1)*D/N], so the segments contiguously cover exactly [0, D].
func FromScript(script string, durationSeconds float64, languageCode string) (models.CaptionSet, error) {
	chunks := textchunk.Chunk(script, maxScriptCaptionChars)
	set, err := distribute(chunks, durationSeconds, languageCode)
	if err != nil {
		return models.CaptionSet{}, fmt.Errorf("script alignment: %w", err)
	}
	return set, nil
}

func distribute(chunks []string, durationSeconds float64, languageCode string) (models.CaptionSet, error) {
	set := models.CaptionSet{LanguageCode: languageCode}
	n := len(chunks)
	if n == 0 {
		return set, fmt.Errorf("no text to align")
	}
	if durationSeconds <= 0 {
		return set, fmt.Errorf("non-positive duration %v", durationSeconds)
	}

	for i, chunk := range chunks {
		start := float64(i) * durationSeconds / float64(n)
		end := float64(i+1) * durationSeconds / float64(n)
		if i == n-1 {
			// The last segment ends exactly at the duration, untouched by
			// floating point division error.
			end = durationSeconds
		}
		set.Segments = append(set.Segments, models.CaptionSegment{
			StartSeconds: start,
			EndSeconds:   end,
			Text:         chunk,
		})
	}
	return set, nil
}
