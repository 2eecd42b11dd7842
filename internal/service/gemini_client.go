package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"coherence/internal/config"
)

// GeminiClient calls the Gemini generateContent API and decodes JSON replies
type GeminiClient struct {
	config *config.GeminiConfig
	client *http.Client
	retry  retryPolicy
}

// GeminiOption customizes a GeminiClient
type GeminiOption func(*GeminiClient)

func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithGeminiRetry overrides attempts and backoff; a nil sleeper uses timers
func WithGeminiRetry(attempts int, base, maxDelay time.Duration, sleeper func(time.Duration)) GeminiOption {
	return func(c *GeminiClient) {
		c.retry = retryPolicy{attempts: attempts, baseDelay: base, maxDelay: maxDelay, sleeper: sleeper}
	}
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(cfg *config.GeminiConfig, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether an API key is configured
func (c *GeminiClient) Available() bool {
	return c != nil && c.config.IsEnabled()
}

// Models returns the configured model names
func (c *GeminiClient) Models() config.GeminiModels {
	return c.config.Models
}

// GenerateJSON sends prompt to modelName and decodes the JSON reply into
// target.
func (c *GeminiClient) GenerateJSON(ctx context.Context, modelName, prompt string, target any) error {
	if !c.Available() {
		return fmt.Errorf("gemini: %w", ErrUnavailable)
	}
	var text string
	err := c.retry.do(ctx, "gemini "+modelName, func() error {
		var err error
		text, err = c.callGemini(ctx, modelName, prompt)
		return err
	})
	if err != nil {
		return err
	}
	if err := decodeLLMJSON(text, target); err != nil {
		return fmt.Errorf("gemini %s: decode reply: %w", modelName, err)
	}
	return nil
}

func (c *GeminiClient) callGemini(ctx context.Context, modelName, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"temperature":      0.4,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", c.config.ModelEndpoint(modelName), c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newHTTPStatusError("gemini", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("empty response from Gemini")
}
