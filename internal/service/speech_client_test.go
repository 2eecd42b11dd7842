package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/config"
	"coherence/internal/logging"
)

const deepgramReply = `{
  "metadata": {"duration": 14.5},
  "results": {"channels": [{"alternatives": [{
    "transcript": "Um so today I want to show you our plan.",
    "confidence": 0.93,
    "words": [
      {"word": "um", "start": 0.5, "end": 0.8, "confidence": 0.9, "punctuated_word": "Um"},
      {"word": "so", "start": 1.0, "end": 1.2, "confidence": 0.95, "punctuated_word": "so"},
      {"word": "today", "start": 1.3, "end": 1.7, "confidence": 0.99, "punctuated_word": "today"},
      {"word": "i", "start": 1.8, "end": 1.9, "confidence": 0.99, "punctuated_word": "I"},
      {"word": "want", "start": 5.0, "end": 5.3, "confidence": 0.98, "punctuated_word": "want"},
      {"word": "to", "start": 5.4, "end": 5.5, "confidence": 0.99, "punctuated_word": "to"},
      {"word": "show", "start": 5.6, "end": 5.9, "confidence": 0.97, "punctuated_word": "show"},
      {"word": "you", "start": 6.0, "end": 6.1, "confidence": 0.99, "punctuated_word": "you"},
      {"word": "our", "start": 6.2, "end": 6.4, "confidence": 0.99, "punctuated_word": "our"},
      {"word": "plan", "start": 6.5, "end": 6.8, "confidence": 0.99, "punctuated_word": "plan."}
    ]
  }]}]}
}`

func writeTempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o644))
	return path
}

func TestSpeechClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listen", r.URL.Path)
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		assert.Equal(t, "video/mp4", r.Header.Get("Content-Type"))
		q := r.URL.Query()
		assert.Equal(t, "nova-2", q.Get("model"))
		assert.Equal(t, "true", q.Get("filler_words"))
		assert.Equal(t, "true", q.Get("smart_format"))
		_, _ = w.Write([]byte(deepgramReply))
	}))
	defer srv.Close()

	cfg := &config.DeepgramConfig{APIKey: "dg-key", BaseURL: srv.URL, Model: "nova-2", Language: "en"}
	client := NewSpeechClient(cfg, nil, logging.Discard())

	got, err := client.Transcribe(context.Background(), writeTempVideo(t))
	require.NoError(t, err)

	assert.Equal(t, 14.5, got.DurationSeconds)
	assert.InDelta(t, 0.93, got.Confidence, 1e-9)
	require.Len(t, got.Words, 10)
	assert.Equal(t, "plan.", got.Words[9].Text())

	// "um" is a disfluency; "so" is contextual and unjudged
	assert.Equal(t, 1, got.Fillers.Total)
	// 9 content words over 6.3s of speech
	assert.Equal(t, 85, got.PaceWPM)

	assert.Equal(t, 1, got.Pauses.Count)
	assert.InDelta(t, 3.1, got.Pauses.LongestSecond, 1e-9)
}

func TestSpeechClient_Unconfigured(t *testing.T) {
	client := NewSpeechClient(&config.DeepgramConfig{}, nil, logging.Discard())
	_, err := client.Transcribe(context.Background(), "missing.mp4")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestSpeechClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(deepgramReply))
	}))
	defer srv.Close()

	cfg := &config.DeepgramConfig{APIKey: "k", BaseURL: srv.URL, Model: "nova-2", Language: "en"}
	client := NewSpeechClient(cfg, nil, logging.Discard())
	client.retry = retryPolicy{attempts: 3, baseDelay: 1, maxDelay: 1, sleeper: func(d time.Duration) {}}

	got, err := client.Transcribe(context.Background(), writeTempVideo(t))
	require.NoError(t, err)
	assert.Len(t, got.Words, 10)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSpeakingPace_FallsBackToDuration(t *testing.T) {
	words := toWords("one")
	words[0].Start, words[0].End = 2, 2
	assert.Equal(t, 30, speakingPace(words, []bool{false}, 2))
	assert.Equal(t, 0, speakingPace(nil, nil, 0))
}
