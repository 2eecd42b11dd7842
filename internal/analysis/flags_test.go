package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/model"
)

func TestNormalizeFlags_DefaultsBadEnums(t *testing.T) {
	flags := NormalizeFlags([]model.VisualIssue{
		{Type: "pacing", Severity: "low", Timestamp: 12},
		{Type: "Missing Gesture", Severity: "HIGH", Timestamp: 30},
		{Type: "something-else", Severity: "???", Timestamp: -4},
	})

	require.Len(t, flags, 3)
	assert.Equal(t, model.PacingMismatch, flags[0].Type)
	assert.Equal(t, model.SeverityLow, flags[0].Severity)
	assert.Equal(t, model.MissingGesture, flags[1].Type)
	assert.Equal(t, model.SeverityHigh, flags[1].Severity)
	assert.Equal(t, model.EmotionalMismatch, flags[2].Type)
	assert.Equal(t, model.SeverityMedium, flags[2].Severity)
	assert.Zero(t, flags[2].Timestamp)
	assert.Equal(t, "flag-3", flags[2].ID)
}

func TestNormalizeFlags_EndTimestampInvariant(t *testing.T) {
	before, after := 5.0, 25.0
	flags := NormalizeFlags([]model.VisualIssue{
		{Timestamp: 10, EndTimestamp: &before},
		{Timestamp: 10, EndTimestamp: &after},
	})

	require.Len(t, flags, 2)
	assert.Nil(t, flags[0].EndTimestamp)
	require.NotNil(t, flags[1].EndTimestamp)
	for _, f := range flags {
		if f.EndTimestamp != nil {
			assert.GreaterOrEqual(t, *f.EndTimestamp, f.Timestamp)
		}
	}
}

func TestNormalizeFlags_CapsAtTen(t *testing.T) {
	issues := make([]model.VisualIssue, 15)
	for i := range issues {
		issues[i] = model.VisualIssue{ID: fmt.Sprintf("v-%d", i), Timestamp: float64(i)}
	}
	flags := NormalizeFlags(issues)
	assert.Len(t, flags, MaxFlags)
	assert.Equal(t, "v-0", flags[0].ID)
}

func TestNormalizeFlags_UniqueIDs(t *testing.T) {
	flags := NormalizeFlags([]model.VisualIssue{
		{ID: "flag-2", Timestamp: 1},
		{ID: "", Timestamp: 2},
		{ID: "x", Timestamp: 3},
		{ID: " x ", Timestamp: 4},
		{ID: "", Timestamp: 5},
	})
	require.Len(t, flags, 5)

	ids := make([]string, len(flags))
	for i, f := range flags {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"flag-2", "flag-1", "x", "flag-3", "flag-4"}, ids)
}

func TestSynthesizeFlags_AllThresholdsCrossed(t *testing.T) {
	m := model.AnalysisMetrics{EyeContact: 40, FillerWords: 12, Fidgeting: 5, SpeakingPace: 190}
	flags := SynthesizeFlags(m, 100)

	require.Len(t, flags, 4)
	assert.Equal(t, []string{"metric-flag-1", "metric-flag-2", "metric-flag-3", "metric-flag-4"},
		[]string{flags[0].ID, flags[1].ID, flags[2].ID, flags[3].ID})

	assert.Equal(t, 25.0, flags[0].Timestamp)
	assert.Equal(t, model.EmotionalMismatch, flags[0].Type)
	assert.Equal(t, model.SeverityHigh, flags[0].Severity)

	assert.Equal(t, 40.0, flags[1].Timestamp)
	assert.Equal(t, model.PacingMismatch, flags[1].Type)
	assert.Equal(t, model.SeverityHigh, flags[1].Severity)

	assert.Equal(t, 50.0, flags[2].Timestamp)
	assert.Equal(t, model.MissingGesture, flags[2].Type)
	assert.Equal(t, model.SeverityMedium, flags[2].Severity)

	assert.Equal(t, 60.0, flags[3].Timestamp)
	assert.Equal(t, model.SeverityMedium, flags[3].Severity)
	assert.Contains(t, flags[3].Description, "faster")
}

func TestSynthesizeFlags_SeverityScales(t *testing.T) {
	eye := func(v int) model.Severity {
		return SynthesizeFlags(model.AnalysisMetrics{EyeContact: v, SpeakingPace: 150}, 60)[0].Severity
	}
	assert.Equal(t, model.SeverityLow, eye(70))
	assert.Equal(t, model.SeverityMedium, eye(50))
	assert.Equal(t, model.SeverityHigh, eye(49))

	slow := SynthesizeFlags(model.AnalysisMetrics{EyeContact: 95, SpeakingPace: 110}, 60)
	require.Len(t, slow, 1)
	assert.Equal(t, model.SeverityLow, slow[0].Severity)
	assert.Contains(t, slow[0].Description, "slower")

	verySlow := SynthesizeFlags(model.AnalysisMetrics{EyeContact: 95, SpeakingPace: 100}, 60)
	assert.Equal(t, model.SeverityMedium, verySlow[0].Severity)
}

func TestSynthesizeFlags_IdealMetricsYieldOnePositiveFlag(t *testing.T) {
	for _, m := range []model.AnalysisMetrics{
		{EyeContact: 90, FillerWords: 3, Fidgeting: 2, SpeakingPace: 130},
		{EyeContact: 100, FillerWords: 0, Fidgeting: 0, SpeakingPace: 170},
	} {
		flags := SynthesizeFlags(m, 200)
		require.Len(t, flags, 1)
		assert.Equal(t, model.SeverityLow, flags[0].Severity)
		assert.Equal(t, 60.0, flags[0].Timestamp)
		assert.Equal(t, "metric-flag-1", flags[0].ID)
	}
}

func TestSynthesizeFlags_InvalidDurationUsesFallback(t *testing.T) {
	flags := SynthesizeFlags(model.AnalysisMetrics{EyeContact: 100, SpeakingPace: 150}, 0)
	require.Len(t, flags, 1)
	assert.Equal(t, DefaultDurationSeconds*0.3, flags[0].Timestamp)
}

func TestTimeline_SortedProjection(t *testing.T) {
	flags := []model.DissonanceFlag{
		{ID: "a", Timestamp: 30, Severity: model.SeverityLow},
		{ID: "b", Timestamp: 10, Severity: model.SeverityHigh},
		{ID: "c", Timestamp: 20, Severity: model.SeverityMedium},
	}
	assert.Equal(t, []model.TimelinePoint{
		{Timestamp: 10, Severity: model.SeverityHigh},
		{Timestamp: 20, Severity: model.SeverityMedium},
		{Timestamp: 30, Severity: model.SeverityLow},
	}, Timeline(flags))
}
