// Package asr implements transcription backends.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dublab/internal/config"
	"dublab/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job status codes reported by the transcription service.
const (
	statusSuccess    = 20000000
	statusProcessing = 20000001
	statusQueued     = 20000002
	statusSilence    = 20000003
)

// AsyncClient submits a transcription job and polls for its result at a
// fixed interval up to a fixed attempt ceiling. It implements
// provider.TranscriptionBackend.
type AsyncClient struct {
	cfg    config.AsyncASRConfig
	client *http.Client
	logger *zap.Logger
}

// NewAsyncClient creates a new asynchronous transcription client.
func NewAsyncClient(cfg config.AsyncASRConfig, logger *zap.Logger) *AsyncClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 450
	}
	return &AsyncClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second, // per-request timeout
		},
		logger: logger,
	}
}

// Name identifies this backend in the fallback chain.
func (c *AsyncClient) Name() string {
	return "async"
}

type submitRequest struct {
	Audio   submitAudio   `json:"audio"`
	Request submitOptions `json:"request"`
}

type submitAudio struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

type submitOptions struct {
	Language       string `json:"language,omitempty"`
	EnablePunc     bool   `json:"enable_punc"`
	ShowUtterances bool   `json:"show_utterances"`
	ShowWords      bool   `json:"show_words"`
}

type queryResponse struct {
	AudioInfo struct {
		DurationMs int `json:"duration"`
	} `json:"audio_info"`
	Result struct {
		Text       string      `json:"text"`
		Utterances []utterance `json:"utterances"`
	} `json:"result"`
}

type utterance struct {
	Text      string `json:"text"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	Words     []word `json:"words,omitempty"`
}

type word struct {
	Text      string `json:"text"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
}

// Transcribe submits the audio at audioURL and polls until the service
// finishes, fails, or the attempt ceiling is reached.
func (c *AsyncClient) Transcribe(ctx context.Context, audioURL, languageHint string) (*models.Transcript, error) {
	requestID := uuid.New().String()

	c.logger.Info("Submitting transcription job",
		zap.String("request_id", requestID),
		zap.String("language_hint", languageHint),
	)

	if err := c.submit(ctx, requestID, audioURL, languageHint); err != nil {
		return nil, fmt.Errorf("failed to submit transcription job: %w", err)
	}

	return c.poll(ctx, requestID)
}

func (c *AsyncClient) submit(ctx context.Context, requestID, audioURL, languageHint string) error {
	reqBody := submitRequest{
		Audio: submitAudio{
			Format: "wav",
			URL:    audioURL,
		},
		Request: submitOptions{
			Language:       languageHint,
			EnablePunc:     true,
			ShowUtterances: true,
			ShowWords:      true,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.SubmitURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	statusCode := resp.Header.Get("X-Api-Status-Code")
	if statusCode != "20000000" {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit failed with status %s: %s", statusCode, string(body))
	}

	return nil
}

func (c *AsyncClient) poll(ctx context.Context, requestID string) (*models.Transcript, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, statusCode, err := c.query(ctx, requestID)
		if err != nil {
			return nil, err
		}

		switch statusCode {
		case statusSuccess:
			c.logger.Info("Transcription job completed",
				zap.String("request_id", requestID),
				zap.Int("word_count", len(result.Words)),
			)
			return result, nil
		case statusProcessing, statusQueued:
			continue
		case statusSilence:
			c.logger.Warn("Transcription detected silent audio",
				zap.String("request_id", requestID),
			)
			return &models.Transcript{}, nil
		default:
			return nil, fmt.Errorf("transcription failed with status code %d", statusCode)
		}
	}

	return nil, fmt.Errorf("transcription polling exhausted after %d attempts at %v interval",
		c.cfg.PollMaxAttempts, c.cfg.PollInterval)
}

func (c *AsyncClient) query(ctx context.Context, requestID string) (*models.Transcript, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.QueryURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create query request: %w", err)
	}
	c.setHeaders(req, requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send query request: %w", err)
	}
	defer resp.Body.Close()

	statusCodeStr := resp.Header.Get("X-Api-Status-Code")
	var statusCode int
	if _, err := fmt.Sscanf(statusCodeStr, "%d", &statusCode); err != nil {
		return nil, 0, fmt.Errorf("failed to parse status code: %s", statusCodeStr)
	}

	if statusCode == statusProcessing || statusCode == statusQueued || statusCode == statusSilence {
		return nil, statusCode, nil
	}
	if statusCode != statusSuccess {
		message := resp.Header.Get("X-Api-Message")
		return nil, statusCode, fmt.Errorf("query failed with status %d: %s", statusCode, message)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, statusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	var queryResp queryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return nil, statusCode, fmt.Errorf("failed to parse response: %w", err)
	}

	return c.toTranscript(&queryResp), statusCode, nil
}

// toTranscript flattens the service's utterance/word structure into the
// internal transcript format. Word timestamps are kept when present; some
// models omit them, which downstream alignment treats as the fallback case.
func (c *AsyncClient) toTranscript(resp *queryResponse) *models.Transcript {
	t := &models.Transcript{
		FullText:        strings.TrimSpace(resp.Result.Text),
		DurationSeconds: float64(resp.AudioInfo.DurationMs) / 1000.0,
	}

	for _, utt := range resp.Result.Utterances {
		if t.FullText == "" {
			t.FullText = strings.TrimSpace(utt.Text)
		}
		for _, w := range utt.Words {
			t.Words = append(t.Words, models.Word{
				Text:         w.Text,
				StartSeconds: float64(w.StartTime) / 1000.0,
				EndSeconds:   float64(w.EndTime) / 1000.0,
			})
		}
	}

	return t
}

func (c *AsyncClient) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-App-Key", c.cfg.AppKey)
	req.Header.Set("X-Api-Access-Key", c.cfg.AccessKey)
	req.Header.Set("X-Api-Request-Id", requestID)
}
