package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"coherence/internal/config"
	"coherence/internal/model"
)

const (
	defaultPollInitial = 2 * time.Second
	defaultPollMax     = 15 * time.Second

	taskStatusReady  = "ready"
	taskStatusFailed = "failed"

	// StatusUploading is reported before the upload request is sent
	StatusUploading = "uploading"
	// StatusValidating is the first status the indexer reports after upload
	StatusValidating = "validating"
)

// VisualClient indexes and analyzes recordings with the TwelveLabs API
type VisualClient struct {
	config       *config.TwelveLabsConfig
	client       *http.Client
	retry        retryPolicy
	indexTimeout time.Duration
	pollInitial  time.Duration
	pollMax      time.Duration
	logger       *slog.Logger
}

// VisualOption customizes a VisualClient
type VisualOption func(*VisualClient)

func WithVisualHTTPClient(client *http.Client) VisualOption {
	return func(c *VisualClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithVisualPolling sets the task poll interval bounds
func WithVisualPolling(initial, maxInterval time.Duration) VisualOption {
	return func(c *VisualClient) {
		c.pollInitial = initial
		c.pollMax = maxInterval
	}
}

func WithVisualRetry(attempts int, base, maxDelay time.Duration) VisualOption {
	return func(c *VisualClient) {
		c.retry = retryPolicy{attempts: attempts, baseDelay: base, maxDelay: maxDelay}
	}
}

// NewVisualClient creates a client; indexTimeout bounds how long
// UploadAndIndex waits for the index task.
func NewVisualClient(cfg *config.TwelveLabsConfig, indexTimeout time.Duration, logger *slog.Logger, opts ...VisualOption) *VisualClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &VisualClient{
		config:       cfg,
		client:       &http.Client{Timeout: 10 * time.Minute},
		retry:        defaultRetryPolicy(),
		indexTimeout: indexTimeout,
		pollInitial:  defaultPollInitial,
		pollMax:      defaultPollMax,
		logger:       logger.With("component", "visual"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type indexListResponse struct {
	Data []struct {
		ID        string `json:"_id"`
		IndexName string `json:"index_name"`
	} `json:"data"`
}

type taskResponse struct {
	ID      string `json:"_id"`
	Status  string `json:"status"`
	VideoID string `json:"video_id"`
}

// CreateOrGetIndex returns the id of the index called name, creating it
// when it does not exist yet.
func (c *VisualClient) CreateOrGetIndex(ctx context.Context, name string) (string, error) {
	if !c.config.IsEnabled() {
		return "", fmt.Errorf("twelvelabs: %w", ErrUnavailable)
	}

	var list indexListResponse
	err := c.retry.do(ctx, "twelvelabs list indexes", func() error {
		return c.doJSON(ctx, http.MethodGet, "/indexes?"+url.Values{"index_name": {name}}.Encode(), nil, &list)
	})
	if err != nil {
		return "", err
	}
	for _, idx := range list.Data {
		if idx.IndexName == name {
			c.logger.Debug("found existing index", "index", idx.ID)
			return idx.ID, nil
		}
	}

	body := map[string]any{
		"index_name": name,
		"models": []map[string]any{
			{"model_name": c.config.Model, "model_options": []string{"visual", "audio"}},
		},
	}
	var created struct {
		ID string `json:"_id"`
	}
	err = c.retry.do(ctx, "twelvelabs create index", func() error {
		return c.doJSON(ctx, http.MethodPost, "/indexes", body, &created)
	})
	if err != nil {
		return "", err
	}
	c.logger.Info("created index", "index", created.ID, "name", name)
	return created.ID, nil
}

// UploadAndIndex uploads the file and waits for indexing. onStatus, when
// set, receives every status the indexer reports. It returns the
// service-side video id.
func (c *VisualClient) UploadAndIndex(ctx context.Context, indexID, path string, onStatus func(string)) (string, error) {
	if !c.config.IsEnabled() {
		return "", fmt.Errorf("twelvelabs: %w", ErrUnavailable)
	}
	notify := func(s string) {
		if onStatus != nil {
			onStatus(s)
		}
	}

	notify(StatusUploading)
	var task taskResponse
	err := c.retry.do(ctx, "twelvelabs upload", func() error {
		return c.uploadTask(ctx, indexID, path, &task)
	})
	if err != nil {
		return "", err
	}
	c.logger.Info("index task created", "task", task.ID)

	deadline := time.Now().Add(c.indexTimeout)
	interval := c.pollInitial
	for {
		var current taskResponse
		err := c.retry.do(ctx, "twelvelabs task status", func() error {
			return c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(task.ID), nil, &current)
		})
		if err != nil {
			return "", err
		}
		notify(current.Status)

		switch current.Status {
		case taskStatusReady:
			c.logger.Info("video indexed", "task", task.ID, "video", current.VideoID)
			return current.VideoID, nil
		case taskStatusFailed:
			return "", fmt.Errorf("twelvelabs: indexing task %s failed", task.ID)
		}

		if c.indexTimeout > 0 && time.Now().Add(interval).After(deadline) {
			return "", fmt.Errorf("twelvelabs task %s: %w", task.ID, ErrIndexTimeout)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, c.pollMax)
	}
}

func (c *VisualClient) uploadTask(ctx context.Context, indexID, path string, out *taskResponse) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := mw.WriteField("index_id", indexID)
		if err == nil {
			var part io.Writer
			part, err = mw.CreateFormFile("video_file", filepath.Base(path))
			if err == nil {
				_, err = io.Copy(part, f)
			}
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/tasks", pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

// Analyze asks the service for a structured analysis. It never fails: any
// error is logged and replaced by the canned fallback payload.
func (c *VisualClient) Analyze(ctx context.Context, externalID string) *model.VisualAnalysis {
	analysis, err := c.analyze(ctx, externalID)
	if err != nil {
		c.logger.Warn("visual analysis failed, using fallback", "video", externalID, "error", err)
		return fallbackVisualAnalysis(externalID)
	}
	analysis.ExternalVideoID = externalID
	return analysis
}

func (c *VisualClient) analyze(ctx context.Context, externalID string) (*model.VisualAnalysis, error) {
	if !c.config.IsEnabled() {
		return nil, fmt.Errorf("twelvelabs: %w", ErrUnavailable)
	}
	body := map[string]any{
		"video_id":    externalID,
		"prompt":      visualAnalysisPrompt,
		"temperature": 0.3,
		"max_tokens":  4000,
		"stream":      false,
		"response_format": map[string]any{
			"type":        "json_schema",
			"json_schema": json.RawMessage(visualResponseSchema),
		},
	}
	var reply struct {
		Data string `json:"data"`
	}
	err := c.retry.do(ctx, "twelvelabs analyze", func() error {
		return c.doJSON(ctx, http.MethodPost, "/analyze", body, &reply)
	})
	if err != nil {
		return nil, err
	}
	return parseVisualAnalysis(reply.Data, c.logger)
}

func (c *VisualClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *VisualClient) send(req *http.Request, out any) error {
	req.Header.Set("x-api-key", c.config.APIKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPStatusError("twelvelabs", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("twelvelabs: decode response: %w", err)
	}
	return nil
}

func fallbackVisualAnalysis(externalID string) *model.VisualAnalysis {
	return &model.VisualAnalysis{
		ExternalVideoID: externalID,
		DurationSeconds: ptr(120.0),
		EyeContactPct:   ptr(60.0),
		FillerWordCount: ptr(10),
		FidgetCount:     ptr(5),
		SpeakingPaceWPM: ptr(150),
		GestureCount:    ptr(8),
		Issues: []model.VisualIssue{{
			Type:           string(model.EmotionalMismatch),
			Severity:       string(model.SeverityMedium),
			Timestamp:      30,
			Description:    "Analysis could not detect specific issues - please review manually",
			Coaching:       "Consider recording yourself to identify specific areas for improvement",
			VisualEvidence: "Unable to analyze",
			VerbalEvidence: "Unable to analyze",
		}},
		Strengths: []string{
			"Video uploaded successfully",
			"Presentation structure appears logical",
		},
		Priorities: []string{
			"Review video manually for improvement areas",
			"Practice with a friend for feedback",
			"Consider re-recording for better analysis",
		},
		OverallAssessment: "Analysis encountered issues. Manual review recommended.",
		Fallback:          true,
	}
}

func ptr[T any](v T) *T { return &v }
