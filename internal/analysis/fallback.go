package analysis

import (
	"time"

	"coherence/internal/model"
)

// FallbackScore is the fixed score of the demonstration result
const FallbackScore = 67

// FallbackResult is the canned demonstration result returned when no
// upstream source produced usable data.
func FallbackResult(videoID string, now time.Time) *model.AnalysisResult {
	flags := []model.DissonanceFlag{
		{
			ID:             "flag-1",
			Timestamp:      45.2,
			EndTimestamp:   ptr(48.0),
			Type:           model.EmotionalMismatch,
			Severity:       model.SeverityHigh,
			Description:    `Said "thrilled to present" but facial expression showed anxiety`,
			Coaching:       "Practice saying this line while smiling in a mirror. Your face should match your excitement.",
			VisualEvidence: `"person looking anxious" at 0:43-0:48`,
			VerbalEvidence: `"thrilled" (positive sentiment)`,
		},
		{
			ID:             "flag-2",
			Timestamp:      83.5,
			Type:           model.MissingGesture,
			Severity:       model.SeverityMedium,
			Description:    `Said "look at this data" without pointing at screen`,
			Coaching:       "When referencing visuals, physically point to anchor audience attention.",
			VerbalEvidence: `deictic phrase "this data" detected`,
		},
		{
			ID:           "flag-3",
			Timestamp:    135.8,
			EndTimestamp: ptr(149.8),
			Type:         model.PacingMismatch,
			Severity:     model.SeverityHigh,
			Description:  "Slide 4 contains 127 words but only shown for 14 seconds",
			Coaching:     "Either reduce slide text to <50 words or extend explanation to ~45 seconds.",
		},
	}
	return &model.AnalysisResult{
		VideoID:         videoID,
		VideoURL:        model.VideoURL(videoID),
		DurationSeconds: DefaultDurationSeconds,
		CoherenceScore:  FallbackScore,
		ScoreTier:       TierFor(FallbackScore),
		Metrics: model.AnalysisMetrics{
			EyeContact:         62,
			FillerWords:        12,
			Fidgeting:          8,
			SpeakingPace:       156,
			SpeakingPaceTarget: model.PaceTarget,
		},
		DissonanceFlags: flags,
		TimelineHeatmap: Timeline(flags),
		Strengths: []string{
			"Clear voice projection",
			"Logical structure",
			"Good pacing overall",
		},
		Priorities: []string{
			"Reduce nervous fidgeting (8 instances detected)",
			"Increase eye contact with camera (currently 62%, target 80%)",
			"Match facial expressions to emotional language",
		},
		Sources:   []string{},
		Degraded:  true,
		CreatedAt: now,
	}
}

// SampleResult builds the demonstration result for a registered sample that
// has no cache file yet.
func SampleResult(sample model.Sample, now time.Time) *model.AnalysisResult {
	r := FallbackResult(sample.ID, now)
	r.CoherenceScore = clampInt(sample.ExpectedScore, 0, 100)
	r.ScoreTier = TierFor(r.CoherenceScore)
	if validPositive(sample.DurationSeconds) {
		r.DurationSeconds = sample.DurationSeconds
	}
	return r
}

func ptr[T any](v T) *T {
	return &v
}
