package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/analysis"
	"coherence/internal/config"
	"coherence/internal/logging"
	"coherence/internal/model"
)

type fakeTwelveLabs struct {
	mu           sync.Mutex
	indexes      map[string]string
	taskStatuses []string
	polls        int
	analyzeText  string
	uploadedFile string
}

func (f *fakeTwelveLabs) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tl-key", r.Header.Get("x-api-key"))
		name := r.URL.Query().Get("index_name")
		var data []map[string]string
		if id, ok := f.indexes[name]; ok {
			data = append(data, map[string]string{"_id": id, "index_name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IndexName string `json:"index_name"`
			Models    []struct {
				ModelName string `json:"model_name"`
			} `json:"models"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pegasus1.2", body.Models[0].ModelName)
		f.indexes[body.IndexName] = "idx-new"
		_, _ = w.Write([]byte(`{"_id": "idx-new"}`))
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "idx-new", r.FormValue("index_id"))
		file, _, err := r.FormFile("video_file")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		f.uploadedFile = string(data)
		_, _ = w.Write([]byte(`{"_id": "task-1"}`))
	})
	mux.HandleFunc("GET /tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.taskStatuses[min(f.polls, len(f.taskStatuses)-1)]
		f.polls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "task-1", "status": status, "video_id": "tl-video"})
	})
	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tl-video", body["video_id"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "gen-1", "data": f.analyzeText})
	})
	return mux
}

func newTestVisualClient(url string, timeout time.Duration) *VisualClient {
	cfg := &config.TwelveLabsConfig{APIKey: "tl-key", BaseURL: url, Model: "pegasus1.2"}
	return NewVisualClient(cfg, timeout, logging.Discard(),
		WithVisualPolling(time.Millisecond, 2*time.Millisecond),
		WithVisualRetry(1, 0, 0))
}

func TestVisualClient_IndexUploadAnalyze(t *testing.T) {
	fake := &fakeTwelveLabs{
		indexes:      map[string]string{},
		taskStatuses: []string{"validating", "indexing", "ready"},
		analyzeText: "Here is the analysis:\n```json\n" + `{
  "duration_seconds": 95,
  "metrics": {"eye_contact_percentage": "72", "filler_word_count": 4, "fidgeting_count": 2.0, "speaking_pace_wpm": 148},
  "dissonance_flags": [
    {"timestamp_seconds": 12.5, "end_timestamp_seconds": 15, "type": "MISSING_GESTURE", "severity": "HIGH",
     "description": "Says look at this without pointing", "coaching_tip": "Point at the chart",
     "visualEvidence": "hands at sides", "verbal_evidence": "look at this"}
  ],
  "strengths": ["Clear voice"],
  "priorities": ["Gesture at visuals"],
  "overall_assessment": "Solid."
}` + "\n```",
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestVisualClient(srv.URL, time.Minute)
	ctx := context.Background()

	indexID, err := client.CreateOrGetIndex(ctx, "talks")
	require.NoError(t, err)
	assert.Equal(t, "idx-new", indexID)

	again, err := client.CreateOrGetIndex(ctx, "talks")
	require.NoError(t, err)
	assert.Equal(t, "idx-new", again)

	var statuses []string
	videoID, err := client.UploadAndIndex(ctx, indexID, writeTempVideo(t), func(s string) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "tl-video", videoID)
	assert.Equal(t, "fake video bytes", fake.uploadedFile)
	assert.Equal(t, []string{StatusUploading, "validating", "indexing", "ready"}, statuses)

	got := client.Analyze(ctx, videoID)
	require.NotNil(t, got)
	assert.False(t, got.Fallback)
	assert.Equal(t, "tl-video", got.ExternalVideoID)
	assert.Equal(t, 95.0, *got.DurationSeconds)
	assert.Equal(t, 72.0, *got.EyeContactPct)
	assert.Equal(t, 4, *got.FillerWordCount)
	assert.Equal(t, 2, *got.FidgetCount)
	assert.Equal(t, 148, *got.SpeakingPaceWPM)
	assert.Nil(t, got.GestureCount)
	require.Len(t, got.Issues, 1)
	issue := got.Issues[0]
	assert.Equal(t, 12.5, issue.Timestamp)
	assert.Equal(t, 15.0, *issue.EndTimestamp)
	assert.Equal(t, "Point at the chart", issue.Coaching)
	assert.Equal(t, "hands at sides", issue.VisualEvidence)
	assert.Equal(t, "look at this", issue.VerbalEvidence)
	assert.Equal(t, []string{"Clear voice"}, got.Strengths)
}

func TestVisualClient_IndexTimeout(t *testing.T) {
	fake := &fakeTwelveLabs{indexes: map[string]string{}, taskStatuses: []string{"indexing"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestVisualClient(srv.URL, 20*time.Millisecond)

	_, err := client.UploadAndIndex(context.Background(), "idx-new", writeTempVideo(t), nil)
	assert.True(t, errors.Is(err, ErrIndexTimeout))
}

func TestVisualClient_FailedTask(t *testing.T) {
	fake := &fakeTwelveLabs{indexes: map[string]string{}, taskStatuses: []string{"validating", "failed"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := newTestVisualClient(srv.URL, time.Minute)

	_, err := client.UploadAndIndex(context.Background(), "idx-new", writeTempVideo(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestVisualClient_AnalyzeFallsBack(t *testing.T) {
	cases := map[string]string{
		"free text":       "I could not analyze this video.",
		"schema mismatch": `{"metrics": "high", "strengths": "many"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			fake := &fakeTwelveLabs{indexes: map[string]string{}, analyzeText: text}
			srv := httptest.NewServer(fake.handler(t))
			defer srv.Close()

			got := newTestVisualClient(srv.URL, time.Minute).Analyze(context.Background(), "tl-video")
			require.NotNil(t, got)
			assert.True(t, got.Fallback)
			assert.Equal(t, 60.0, *got.EyeContactPct)
			assert.Equal(t, 150, *got.SpeakingPaceWPM)
			require.Len(t, got.Issues, 1)
			assert.Equal(t, 30.0, got.Issues[0].Timestamp)
			assert.Equal(t, string(model.SeverityMedium), got.Issues[0].Severity)
		})
	}
}

func TestVisualClient_UnreachableServiceFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	got := newTestVisualClient(srv.URL, time.Minute).Analyze(context.Background(), "tl-video")
	assert.True(t, got.Fallback)
	assert.Equal(t, "tl-video", got.ExternalVideoID)
}

func TestParseVisualAnalysis_FieldVariants(t *testing.T) {
	got, err := parseVisualAnalysis(`{
		"metrics": {"eye_contact": 55, "fidget_count": 7},
		"issues": [{"start": 40, "end_timestamp": 44, "type": "pacing mismatch", "severity": "low", "coaching": "Slow down"}]
	}`, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 55.0, *got.EyeContactPct)
	assert.Equal(t, 7, *got.FidgetCount)
	assert.Nil(t, got.FillerWordCount)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, 40.0, got.Issues[0].Timestamp)
	assert.Equal(t, 44.0, *got.Issues[0].EndTimestamp)
	assert.Equal(t, "pacing mismatch", got.Issues[0].Type)
}

func TestParseVisualAnalysis_MalformedMetricKeepsRest(t *testing.T) {
	got, err := parseVisualAnalysis(`{
		"metrics": {"eye_contact_percentage": "62%", "fidgeting_count": 8, "speaking_pace_wpm": "148"},
		"dissonance_flags": [{"timestamp_seconds": 12, "type": "MISSING_GESTURE", "severity": "HIGH", "description": "no pointing"}],
		"strengths": ["Clear voice", 7, ""],
		"priorities": ["Reduce fidgeting"]
	}`, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, got.EyeContactPct)
	require.NotNil(t, got.FidgetCount)
	assert.Equal(t, 8, *got.FidgetCount)
	require.NotNil(t, got.SpeakingPaceWPM)
	assert.Equal(t, 148, *got.SpeakingPaceWPM)
	assert.Equal(t, []string{"Clear voice"}, got.Strengths)
	assert.Equal(t, []string{"Reduce fidgeting"}, got.Priorities)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "HIGH", got.Issues[0].Severity)
	assert.False(t, got.Fallback)
}

func TestParseVisualAnalysis_BadIssueFieldsUseDefaults(t *testing.T) {
	got, err := parseVisualAnalysis(`{
		"metrics": {"eye_contact_percentage": 71},
		"dissonance_flags": [
			{"timestamp_seconds": 10, "type": "EMOTIONAL_MISMATCH", "severity": null, "description": "flat face"},
			{"timestamp_seconds": "20", "type": 3, "severity": "HIGH", "description": "numeric type"},
			"not an object"
		]
	}`, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, got.EyeContactPct)
	assert.Equal(t, 71.0, *got.EyeContactPct)
	require.Len(t, got.Issues, 2)

	assert.Empty(t, got.Issues[0].Severity)
	assert.Equal(t, model.SeverityMedium, analysis.ParseSeverity(got.Issues[0].Severity))

	assert.Equal(t, 20.0, got.Issues[1].Timestamp)
	assert.Empty(t, got.Issues[1].Type)
	assert.Equal(t, model.EmotionalMismatch, analysis.ParseDissonanceType(got.Issues[1].Type))
	assert.Equal(t, "HIGH", got.Issues[1].Severity)
}

func TestParseVisualAnalysis_UndecodableReply(t *testing.T) {
	_, err := parseVisualAnalysis("the model declined to answer", logging.Discard())
	require.Error(t, err)
}

func TestVisualClient_AnalyzeKeepsPartiallyMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"data": `{"metrics": {"eye_contact_percentage": "lots", "fidgeting_count": 4}, "dissonance_flags": [{"type": "PACING_MISMATCH", "severity": null, "timestamp_seconds": 5}]}`,
		})
	}))
	defer srv.Close()

	got := newTestVisualClient(srv.URL, time.Minute).Analyze(context.Background(), "tl-video")
	assert.False(t, got.Fallback)
	assert.Nil(t, got.EyeContactPct)
	require.NotNil(t, got.FidgetCount)
	assert.Equal(t, 4, *got.FidgetCount)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "PACING_MISMATCH", got.Issues[0].Type)
}
