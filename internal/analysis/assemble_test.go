package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/model"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func speechFixture() *model.SpeechAnalysis {
	return &model.SpeechAnalysis{
		Transcript:      "So today I want to talk about our results.",
		PaceWPM:         150,
		Fillers:         model.FillerMetrics{Total: 12},
		DurationSeconds: 100,
		Words:           words("So", "today", "I", "want", "to", "talk", "about", "our", "results."),
	}
}

func visualFixture() *model.VisualAnalysis {
	return &model.VisualAnalysis{
		EyeContactPct:   floatp(62),
		FidgetCount:     intp(8),
		FillerWordCount: intp(4),
		SpeakingPaceWPM: intp(170),
		DurationSeconds: floatp(98),
		Issues: []model.VisualIssue{
			{Type: "MISSING_GESTURE", Severity: "MEDIUM", Timestamp: 70},
			{Type: "EMOTIONAL_MISMATCH", Severity: "HIGH", Timestamp: 20},
		},
		Strengths:  []string{"Clear voice"},
		Priorities: []string{"Reduce fidgeting"},
	}
}

func TestAssemble_BothSources(t *testing.T) {
	r := Assemble(AssembleInput{VideoID: "vid-a", Speech: speechFixture(), Visual: visualFixture(), Now: fixedNow})

	assert.Equal(t, model.AnalysisMetrics{
		EyeContact: 62, FillerWords: 12, Fidgeting: 8, SpeakingPace: 150, SpeakingPaceTarget: "140-160",
	}, r.Metrics)

	// 19 + 13 + 11 + 15 - (10 + 5)
	assert.Equal(t, 43, r.CoherenceScore)
	assert.Equal(t, TierFor(r.CoherenceScore), r.ScoreTier)
	assert.Equal(t, 100.0, r.DurationSeconds)

	require.Len(t, r.DissonanceFlags, 2)
	assert.Equal(t, 20.0, r.DissonanceFlags[0].Timestamp)
	require.Len(t, r.TimelineHeatmap, 2)
	assert.Equal(t, model.TimelinePoint{Timestamp: 20, Severity: model.SeverityHigh}, r.TimelineHeatmap[0])
	assert.Equal(t, model.TimelinePoint{Timestamp: 70, Severity: model.SeverityMedium}, r.TimelineHeatmap[1])

	assert.Equal(t, []string{"Clear voice"}, r.Strengths)
	assert.Equal(t, []string{"Reduce fidgeting"}, r.Priorities)
	assert.Equal(t, "/api/videos/vid-a/stream", r.VideoURL)
	assert.ElementsMatch(t, []string{SourceSpeech, SourceVisual}, r.Sources)
	assert.False(t, r.Degraded)
	require.Len(t, r.Transcript, 1)
	assert.Equal(t, "So today I want to talk about our results.", r.Transcript[0].Text)
}

func TestAssemble_SpeechOnly(t *testing.T) {
	speech := speechFixture()
	speech.DurationSeconds = 90
	r := Assemble(AssembleInput{VideoID: "vid-b", Speech: speech, Now: fixedNow})

	assert.Equal(t, DefaultEyeContactPct, r.Metrics.EyeContact)
	assert.Equal(t, DefaultFidgetCount, r.Metrics.Fidgeting)
	assert.Equal(t, 12, r.Metrics.FillerWords)
	assert.Equal(t, 150, r.Metrics.SpeakingPace)

	// 18 + 13 + 16 + 15, synthesized flags add no penalty
	assert.Equal(t, 62, r.CoherenceScore)
	assert.Equal(t, model.TierGoodStart, r.ScoreTier)

	require.Len(t, r.DissonanceFlags, 3)
	for _, f := range r.DissonanceFlags {
		assert.Contains(t, f.ID, "metric-flag-")
	}
	assert.Equal(t, 22.5, r.DissonanceFlags[0].Timestamp)
	assert.Equal(t, model.SeverityMedium, r.DissonanceFlags[0].Severity)
	assert.Equal(t, model.SeverityHigh, r.DissonanceFlags[1].Severity)
	assert.True(t, r.Degraded)
	assert.Equal(t, []string{SourceSpeech}, r.Sources)
	assert.NotEmpty(t, r.Strengths)
	assert.NotEmpty(t, r.Priorities)
}

func TestAssemble_NeitherSourceReturnsFallback(t *testing.T) {
	r := Assemble(AssembleInput{VideoID: "vid-c", Now: fixedNow})

	assert.Equal(t, FallbackResult("vid-c", fixedNow), r)
	assert.Equal(t, FallbackScore, r.CoherenceScore)
	assert.Equal(t, model.TierGoodStart, r.ScoreTier)
	require.Len(t, r.DissonanceFlags, 3)
	assert.Equal(t, []float64{45.2, 83.5, 135.8}, []float64{
		r.DissonanceFlags[0].Timestamp, r.DissonanceFlags[1].Timestamp, r.DissonanceFlags[2].Timestamp,
	})
}

func TestAssemble_MergePriority(t *testing.T) {
	speech := speechFixture()
	visual := visualFixture()

	speechOnly := Assemble(AssembleInput{VideoID: "x", Speech: speech, Now: fixedNow})
	visualOnly := Assemble(AssembleInput{VideoID: "x", Visual: visual, Now: fixedNow})
	both := Assemble(AssembleInput{VideoID: "x", Speech: speech, Visual: visual, Now: fixedNow})

	assert.Equal(t, visualOnly.Metrics.EyeContact, both.Metrics.EyeContact)
	assert.Equal(t, visualOnly.Metrics.Fidgeting, both.Metrics.Fidgeting)
	assert.Equal(t, speechOnly.Metrics.SpeakingPace, both.Metrics.SpeakingPace)
	assert.Equal(t, speechOnly.Metrics.FillerWords, both.Metrics.FillerWords)
	assert.Equal(t, 170, visualOnly.Metrics.SpeakingPace)
	assert.Equal(t, 4, visualOnly.Metrics.FillerWords)
	assert.Equal(t, 98.0, visualOnly.DurationSeconds)
}

func TestAssemble_TimelineAlwaysMatchesFlags(t *testing.T) {
	inputs := []AssembleInput{
		{VideoID: "1", Speech: speechFixture(), Visual: visualFixture()},
		{VideoID: "2", Speech: speechFixture()},
		{VideoID: "3", Visual: visualFixture()},
		{VideoID: "4", Visual: &model.VisualAnalysis{}},
		{VideoID: "5"},
	}
	for _, in := range inputs {
		r := Assemble(in)
		require.NotEmpty(t, r.DissonanceFlags, in.VideoID)
		assert.Equal(t, Timeline(r.DissonanceFlags), r.TimelineHeatmap, in.VideoID)
		assert.LessOrEqual(t, len(r.Strengths), MaxStrengths)
		assert.LessOrEqual(t, len(r.Priorities), MaxPriorities)
		assert.GreaterOrEqual(t, r.CoherenceScore, 0)
		assert.LessOrEqual(t, r.CoherenceScore, 100)
	}
}

func TestAssemble_TruncatesServiceLists(t *testing.T) {
	visual := visualFixture()
	visual.Strengths = []string{"a", "", "b", "c", "d", "e"}
	visual.Priorities = []string{"1", "2", "3", "4"}

	r := Assemble(AssembleInput{VideoID: "t", Visual: visual})
	assert.Equal(t, []string{"a", "b", "c", "d"}, r.Strengths)
	assert.Equal(t, []string{"1", "2", "3"}, r.Priorities)
}

func TestExtractors_NeverFail(t *testing.T) {
	s := ExtractSpeech(nil)
	assert.False(t, s.Available)
	assert.Equal(t, DefaultPaceWPM, s.PaceWPM.Value)

	v := ExtractVisual(&model.VisualAnalysis{EyeContactPct: floatp(140), FidgetCount: intp(-3)})
	assert.Equal(t, 100, v.EyeContact.Value)
	assert.Equal(t, 0, v.Fidget.Value)
	assert.False(t, v.Duration.Present)
	assert.Equal(t, DefaultDurationSeconds, v.Duration.Value)
}

func TestExtractVisual_HugeEyeContactClampsHigh(t *testing.T) {
	prev := -1
	for _, pct := range []float64{-1e300, -5, 0, 55.5, 100, 101, 1e9, 1e300, math.Inf(1)} {
		v := ExtractVisual(&model.VisualAnalysis{EyeContactPct: floatp(pct)})
		assert.GreaterOrEqual(t, v.EyeContact.Value, prev, "pct=%g", pct)
		assert.GreaterOrEqual(t, v.EyeContact.Value, 0)
		assert.LessOrEqual(t, v.EyeContact.Value, 100)
		prev = v.EyeContact.Value
	}
	assert.Equal(t, 100, prev)
	assert.Equal(t, 0, ExtractVisual(&model.VisualAnalysis{EyeContactPct: floatp(-1e300)}).EyeContact.Value)
}

func TestSampleResult(t *testing.T) {
	r := SampleResult(model.Sample{ID: "sample-2", ExpectedScore: 89, DurationSeconds: 180}, fixedNow)
	assert.Equal(t, 89, r.CoherenceScore)
	assert.Equal(t, model.TierStrong, r.ScoreTier)
	assert.Equal(t, 180.0, r.DurationSeconds)
	assert.Equal(t, "sample-2", r.VideoID)
}
