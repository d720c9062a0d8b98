// Package provider exposes a uniform gateway over interchangeable
// speech-synthesis, transcription and translation backends. Each capability
// has a ranked backend chain built once at startup; backends are tried in
// order and a fatal error surfaces only after the lowest-ranked backend has
// also failed.
package provider

import (
	"context"
	"fmt"
	"unicode/utf8"

	"dublab/internal/models"

	"go.uber.org/zap"
)

// SynthesisBackend turns text into spoken audio. SpeechRate is a pacing
// multiplier (1.0 = natural); backends may ignore it.
type SynthesisBackend interface {
	Name() string
	MaxInputChars() int
	Synthesize(ctx context.Context, text, voice, languageCode string, speechRate float64) ([]byte, error)
}

// TranscriptionBackend turns audio (reachable at a URL) into a transcript.
// Word-level timestamps are preferred but not guaranteed.
type TranscriptionBackend interface {
	Name() string
	Transcribe(ctx context.Context, audioURL, languageHint string) (*models.Transcript, error)
}

// TranslationBackend translates a batch of texts, preserving order.
type TranslationBackend interface {
	Name() string
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// UnavailableError means every backend in a capability's chain failed.
type UnavailableError struct {
	Capability  string
	LastBackend string
	Err         error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("all %s backends failed (last: %s): %v", e.Capability, e.LastBackend, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Gateway routes capability calls through ranked backend chains.
type Gateway struct {
	synthesis     []SynthesisBackend
	transcription []TranscriptionBackend
	translation   []TranslationBackend
	logger        *zap.Logger
}

// NewGateway builds a gateway from ranked backend chains, primary first.
func NewGateway(
	synthesis []SynthesisBackend,
	transcription []TranscriptionBackend,
	translation []TranslationBackend,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		synthesis:     synthesis,
		transcription: transcription,
		translation:   translation,
		logger:        logger,
	}
}

// MaxSynthesisInput returns the smallest input limit across the synthesis
// chain. Callers must pre-chunk text to this size; the gateway itself never
// chunks, since reassembly differs per capability.
func (g *Gateway) MaxSynthesisInput() int {
	limit := 0
	for _, b := range g.synthesis {
		if limit == 0 || b.MaxInputChars() < limit {
			limit = b.MaxInputChars()
		}
	}
	return limit
}

// Synthesize runs one pre-chunked synthesis request through the chain.
// It returns the audio bytes and the name of the backend that produced them.
func (g *Gateway) Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, string, error) {
	if len(g.synthesis) == 0 {
		return nil, "", &UnavailableError{Capability: "synthesis", Err: fmt.Errorf("no backends configured")}
	}

	var lastErr error
	lastBackend := ""
	for _, b := range g.synthesis {
		lastBackend = b.Name()
		if max := b.MaxInputChars(); max > 0 && utf8.RuneCountInString(req.Text) > max {
			lastErr = fmt.Errorf("input length %d exceeds backend limit %d", utf8.RuneCountInString(req.Text), max)
			g.logger.Warn("Skipping synthesis backend",
				zap.String("backend", b.Name()),
				zap.Error(lastErr),
			)
			continue
		}
		audio, err := b.Synthesize(ctx, req.Text, req.Voice, req.LanguageCode, req.SpeechRate)
		if err == nil {
			return audio, b.Name(), nil
		}
		lastErr = err
		g.logger.Warn("Synthesis backend failed, trying next",
			zap.String("backend", b.Name()),
			zap.Error(err),
		)
	}
	return nil, "", &UnavailableError{Capability: "synthesis", LastBackend: lastBackend, Err: lastErr}
}

// Transcribe runs transcription through the chain.
func (g *Gateway) Transcribe(ctx context.Context, audioURL, languageHint string) (*models.Transcript, error) {
	if len(g.transcription) == 0 {
		return nil, &UnavailableError{Capability: "transcription", Err: fmt.Errorf("no backends configured")}
	}

	var lastErr error
	lastBackend := ""
	for _, b := range g.transcription {
		lastBackend = b.Name()
		transcript, err := b.Transcribe(ctx, audioURL, languageHint)
		if err == nil {
			return transcript, nil
		}
		lastErr = err
		g.logger.Warn("Transcription backend failed, trying next",
			zap.String("backend", b.Name()),
			zap.Error(err),
		)
	}
	return nil, &UnavailableError{Capability: "transcription", LastBackend: lastBackend, Err: lastErr}
}

// Translate runs batch translation through the chain. When every backend
// fails the input texts are returned unchanged alongside an UnavailableError,
// so callers that tolerate degradation can keep the originals while callers
// that require translation treat the error as fatal.
func (g *Gateway) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(g.translation) == 0 {
		return texts, &UnavailableError{Capability: "translation", Err: fmt.Errorf("no backends configured")}
	}

	var lastErr error
	lastBackend := ""
	for _, b := range g.translation {
		lastBackend = b.Name()
		out, err := b.Translate(ctx, texts, sourceLang, targetLang)
		if err == nil {
			if len(out) != len(texts) {
				lastErr = fmt.Errorf("translation count mismatch: expected %d, got %d", len(texts), len(out))
				g.logger.Warn("Translation backend returned wrong count",
					zap.String("backend", b.Name()),
					zap.Error(lastErr),
				)
				continue
			}
			return out, nil
		}
		lastErr = err
		g.logger.Warn("Translation backend failed, trying next",
			zap.String("backend", b.Name()),
			zap.Error(err),
		)
	}
	return texts, &UnavailableError{Capability: "translation", LastBackend: lastBackend, Err: lastErr}
}
