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

	"go.uber.org/zap"
)

// SyncClient calls a synchronous transcription endpoint. It is ranked below
// the async service: cheaper, but it returns no word-level timestamps, so
// caption alignment degrades to sentence distribution.
type SyncClient struct {
	cfg    config.SyncASRConfig
	client *http.Client
	logger *zap.Logger
}

// NewSyncClient creates a new synchronous transcription client.
func NewSyncClient(cfg config.SyncASRConfig, logger *zap.Logger) *SyncClient {
	return &SyncClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Name identifies this backend in the fallback chain.
func (c *SyncClient) Name() string {
	return "sync"
}

type syncRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

type syncResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Text            string  `json:"text"`
		DurationSeconds float64 `json:"duration_seconds"`
		Language        string  `json:"language"`
	} `json:"data"`
}

// Transcribe performs one synchronous transcription call.
func (c *SyncClient) Transcribe(ctx context.Context, audioURL, languageHint string) (*models.Transcript, error) {
	bodyBytes, err := json.Marshal(syncRequest{AudioURL: audioURL, Language: languageHint})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *http.Response
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
		}

		resp, err = c.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, string(body))
		}
		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to call transcription service: %w", err)
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	defer resp.Body.Close()

	var apiResp syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("transcription service error: %s", apiResp.Message)
	}

	return &models.Transcript{
		FullText:        strings.TrimSpace(apiResp.Data.Text),
		DurationSeconds: apiResp.Data.DurationSeconds,
		LanguageCode:    apiResp.Data.Language,
	}, nil
}
