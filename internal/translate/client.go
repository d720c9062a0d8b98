// Package translate implements translation backends over LLM
// chat-completions endpoints.
package translate

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

// Client translates batches of text through a chat-completions API. It
// implements provider.TranslationBackend.
type Client struct {
	name    string
	apiKey  string
	apiURL  string
	model   string
	client  *http.Client
	logger  *zap.Logger
	limiter *pacer
}

// NewClient creates a new translation client.
func NewClient(cfg config.TranslateBackendConfig, logger *zap.Logger) *Client {
	return &Client{
		name:   cfg.Name,
		apiKey: cfg.APIKey,
		apiURL: cfg.URL,
		model:  cfg.Model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		limiter: newPacer(cfg.RPS),
	}
}

// Name identifies this backend in the fallback chain.
func (c *Client) Name() string {
	return c.name
}

// Translate translates texts from sourceLang to targetLang, preserving order
// and count. The prompt forces a JSON string array so the response can be
// mapped back onto the input one-to-one.
func (c *Client) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("translation throttled: %w", err)
		}
	}

	inputJSON, _ := json.Marshal(texts)
	systemPrompt := strings.Join([]string{
		"You are a translation engine.",
		"Output only a JSON array of strings, no explanations.",
		"Keep the number and order of entries identical to the input.",
		"Preserve names, numbers, dates and punctuation.",
	}, " ")
	userPrompt := fmt.Sprintf(
		"Translate every element of this JSON array from %s to %s. Output only the JSON array:\n%s",
		sourceLang, targetLang, string(inputJSON),
	)

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": 0.2,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *http.Response
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		req, reqErr := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(bodyBytes))
		if reqErr != nil {
			return nil, fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

		resp, err = c.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("translation API returned status %d: %s", resp.StatusCode, string(body))
		}
		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to call translation API: %w", err)
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	defer resp.Body.Close()

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("translation API returned no choices")
	}

	translations, err := parseArray(apiResp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(translations) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: expected %d, got %d", len(texts), len(translations))
	}

	return translations, nil
}

// parseArray extracts the JSON string array from the model output, tolerating
// code fences and prose around it.
func parseArray(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("translation response contains no JSON array")
	}

	var out []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("failed to parse translation array: %w", err)
	}
	return out, nil
}
