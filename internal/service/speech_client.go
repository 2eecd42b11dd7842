package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"coherence/internal/config"
	"coherence/internal/model"
)

// PauseThreshold is the minimum silence between words counted as a pause
const PauseThreshold = 2.0

// SpeechClient transcribes recordings with the Deepgram prerecorded API
type SpeechClient struct {
	config     *config.DeepgramConfig
	client     *http.Client
	classifier *FillerClassifier
	retry      retryPolicy
	logger     *slog.Logger
}

func NewSpeechClient(cfg *config.DeepgramConfig, classifier *FillerClassifier, logger *slog.Logger) *SpeechClient {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewFillerClassifier(nil, logger)
	}
	return &SpeechClient{
		config:     cfg,
		client:     &http.Client{Timeout: 10 * time.Minute},
		classifier: classifier,
		retry:      defaultRetryPolicy(),
		logger:     logger.With("component", "speech"),
	}
}

type deepgramWord struct {
	Word           string  `json:"word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
	PunctuatedWord string  `json:"punctuated_word"`
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string         `json:"transcript"`
				Confidence float64        `json:"confidence"`
				Words      []deepgramWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe uploads the file at path and returns the normalized analysis
func (c *SpeechClient) Transcribe(ctx context.Context, path string) (*model.SpeechAnalysis, error) {
	if !c.config.IsEnabled() {
		return nil, fmt.Errorf("deepgram: %w", ErrUnavailable)
	}

	var resp deepgramResponse
	err := c.retry.do(ctx, "deepgram transcribe", func() error {
		return c.listen(ctx, path, &resp)
	})
	if err != nil {
		return nil, err
	}

	analysis := c.toSpeechAnalysis(ctx, &resp)
	c.logger.Info("transcription complete",
		"words", len(analysis.Words),
		"fillers", analysis.Fillers.Total,
		"paceWpm", analysis.PaceWPM,
		"duration", analysis.DurationSeconds)
	return analysis, nil
}

func (c *SpeechClient) listen(ctx context.Context, path string, out *deepgramResponse) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	q := url.Values{}
	q.Set("model", c.config.Model)
	q.Set("language", c.config.Language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("filler_words", "true")
	q.Set("utterances", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/listen?"+q.Encode(), f)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.config.APIKey)
	req.Header.Set("Content-Type", contentTypeFor(path))

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPStatusError("deepgram", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("deepgram: decode response: %w", err)
	}
	return nil
}

func (c *SpeechClient) toSpeechAnalysis(ctx context.Context, resp *deepgramResponse) *model.SpeechAnalysis {
	analysis := &model.SpeechAnalysis{DurationSeconds: resp.Metadata.Duration}
	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		alt := resp.Results.Channels[0].Alternatives[0]
		analysis.Transcript = alt.Transcript
		analysis.Confidence = alt.Confidence
		analysis.Words = make([]model.Word, 0, len(alt.Words))
		for _, w := range alt.Words {
			analysis.Words = append(analysis.Words, model.Word{
				Word:       w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Confidence,
				Punctuated: w.PunctuatedWord,
			})
		}
	}

	fillers, isFiller := c.classifier.Classify(ctx, analysis.Words)
	analysis.Fillers = fillers
	analysis.PaceWPM = speakingPace(analysis.Words, isFiller, analysis.DurationSeconds)
	analysis.Pauses = detectPauses(analysis.Words)
	return analysis
}

// speakingPace counts non-filler words per minute of actual speech, falling
// back to the full duration when word timings are degenerate.
func speakingPace(words []model.Word, isFiller []bool, duration float64) int {
	content := 0
	for i := range words {
		if !isFiller[i] {
			content++
		}
	}
	if len(words) > 0 {
		if span := words[len(words)-1].End - words[0].Start; span > 0 {
			return int(float64(content) / (span / 60))
		}
	}
	if duration <= 0 {
		return 0
	}
	return int(float64(content) / (duration / 60))
}

func detectPauses(words []model.Word) model.PauseMetrics {
	var p model.PauseMetrics
	for i := 0; i+1 < len(words); i++ {
		gap := words[i+1].Start - words[i].End
		if gap >= PauseThreshold {
			p.Count++
			p.TotalSeconds += gap
			p.LongestSecond = max(p.LongestSecond, gap)
		}
	}
	return p
}

func contentTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "video/mp4"
}
