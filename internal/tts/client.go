// Package tts implements HTTP speech-synthesis backends.
package tts

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

	"go.uber.org/zap"
)

// Client calls an HTTP speech-synthesis service. It implements
// provider.SynthesisBackend.
type Client struct {
	name          string
	baseURL       string
	apiKey        string
	maxInputChars int
	client        *http.Client
	logger        *zap.Logger
}

// synthesizeRequest is the wire format the synthesis service accepts.
type synthesizeRequest struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice,omitempty"`
	Language     string  `json:"language,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
	OutputFormat string  `json:"output_format"`
	SampleRate   int     `json:"sample_rate"`
}

// synthesizeResponse is the wire format the synthesis service returns.
// The service either links the generated audio or streams it directly.
type synthesizeResponse struct {
	AudioURL   string `json:"audio_url"`
	DurationMs int    `json:"duration_ms"`
	Format     string `json:"format"`
}

// NewClient creates a new synthesis backend client.
func NewClient(cfg config.SpeechBackendConfig, logger *zap.Logger) *Client {
	return &Client{
		name:          cfg.Name,
		baseURL:       cfg.URL,
		apiKey:        cfg.APIKey,
		maxInputChars: cfg.MaxInputChars,
		client: &http.Client{
			Timeout: 600 * time.Second, // synthesis of long chunks is slow
		},
		logger: logger,
	}
}

// Name returns the backend's configured name.
func (c *Client) Name() string {
	return c.name
}

// MaxInputChars returns the service's advertised input-length limit.
func (c *Client) MaxInputChars() int {
	return c.maxInputChars
}

// Synthesize performs one synthesis call and returns the audio bytes.
// speechRate is forwarded as a tempo multiplier; the service may ignore it.
func (c *Client) Synthesize(ctx context.Context, text, voice, languageCode string, speechRate float64) ([]byte, error) {
	reqBody := synthesizeRequest{
		Text:         text,
		Voice:        voice,
		Language:     languageCode,
		Speed:        speechRate,
		OutputFormat: "wav",
		SampleRate:   22050,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/synthesize", c.baseURL)

	var resp *http.Response
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err = c.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("synthesis service returned status %d: %s", resp.StatusCode, string(body))
		}
		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to call synthesis service: %w", err)
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		// Direct audio response.
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio: %w", err)
		}
		return audio, nil
	}

	var apiResp synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.AudioURL == "" {
		return nil, fmt.Errorf("synthesis service returned no audio")
	}

	return c.downloadAudio(ctx, apiResp.AudioURL)
}

func (c *Client) downloadAudio(ctx context.Context, audioURL string) ([]byte, error) {
	if strings.HasPrefix(audioURL, "/") {
		audioURL = strings.TrimRight(c.baseURL, "/") + audioURL
	}
	req, err := http.NewRequestWithContext(ctx, "GET", audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download audio: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
}
