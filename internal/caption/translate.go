package caption

import (
	"context"

	"dublab/internal/models"

	"go.uber.org/zap"
)

// Translator is the translation surface caption translation needs.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// TranslateSet translates each segment's text independently, leaving timing
// untouched. A failed segment keeps its original text instead of failing the
// whole set; the number of segments kept untranslated is returned.
func TranslateSet(ctx context.Context, tr Translator, set models.CaptionSet, targetLanguage string, logger *zap.Logger) (models.CaptionSet, int) {
	out := models.CaptionSet{
		LanguageCode: targetLanguage,
		StyleHints:   set.StyleHints,
		Segments:     make([]models.CaptionSegment, len(set.Segments)),
	}

	degraded := 0
	for i, seg := range set.Segments {
		translated, err := tr.Translate(ctx, []string{seg.Text}, set.LanguageCode, targetLanguage)
		text := seg.Text
		if err != nil || len(translated) != 1 {
			degraded++
			logger.Warn("Caption segment kept untranslated",
				zap.Int("segment", i),
				zap.Error(err),
			)
		} else {
			text = translated[0]
		}
		out.Segments[i] = models.CaptionSegment{
			StartSeconds: seg.StartSeconds,
			EndSeconds:   seg.EndSeconds,
			Text:         text,
		}
	}

	return out, degraded
}
