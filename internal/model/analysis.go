package model

import "time"

// DissonanceType classifies what kind of mismatch a flag describes
type DissonanceType string

const (
	EmotionalMismatch DissonanceType = "EMOTIONAL_MISMATCH"
	MissingGesture    DissonanceType = "MISSING_GESTURE"
	PacingMismatch    DissonanceType = "PACING_MISMATCH"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

type ScoreTier string

const (
	TierStrong    ScoreTier = "Strong"
	TierGoodStart ScoreTier = "Good Start"
	TierNeedsWork ScoreTier = "Needs Work"
)

// PaceTarget is the optimal speaking band shown next to the measured pace
const PaceTarget = "140-160"

// AnalysisMetrics are the four headline numbers of a run
type AnalysisMetrics struct {
	EyeContact         int    `json:"eyeContact" bson:"eyeContact"`
	FillerWords        int    `json:"fillerWords" bson:"fillerWords"`
	Fidgeting          int    `json:"fidgeting" bson:"fidgeting"`
	SpeakingPace       int    `json:"speakingPace" bson:"speakingPace"`
	SpeakingPaceTarget string `json:"speakingPaceTarget" bson:"speakingPaceTarget"`
}

// DissonanceFlag is one detected mismatch between speech and body language.
// EndTimestamp, when set, is never earlier than Timestamp.
type DissonanceFlag struct {
	ID             string         `json:"id" bson:"id"`
	Timestamp      float64        `json:"timestamp" bson:"timestamp"`
	EndTimestamp   *float64       `json:"endTimestamp,omitempty" bson:"endTimestamp,omitempty"`
	Type           DissonanceType `json:"type" bson:"type"`
	Severity       Severity       `json:"severity" bson:"severity"`
	Description    string         `json:"description" bson:"description"`
	Coaching       string         `json:"coaching" bson:"coaching"`
	VisualEvidence string         `json:"visualEvidence,omitempty" bson:"visualEvidence,omitempty"`
	VerbalEvidence string         `json:"verbalEvidence,omitempty" bson:"verbalEvidence,omitempty"`
}

type TimelinePoint struct {
	Timestamp float64  `json:"timestamp" bson:"timestamp"`
	Severity  Severity `json:"severity" bson:"severity"`
}

type TranscriptSegment struct {
	Text       string  `json:"text" bson:"text"`
	Start      float64 `json:"start" bson:"start"`
	End        float64 `json:"end" bson:"end"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// AnalysisResult is the final, read-only output of one processing run
type AnalysisResult struct {
	VideoID         string              `json:"videoId" bson:"videoId"`
	VideoURL        string              `json:"videoUrl" bson:"videoUrl"`
	DurationSeconds float64             `json:"durationSeconds" bson:"durationSeconds"`
	CoherenceScore  int                 `json:"coherenceScore" bson:"coherenceScore"`
	ScoreTier       ScoreTier           `json:"scoreTier" bson:"scoreTier"`
	Metrics         AnalysisMetrics     `json:"metrics" bson:"metrics"`
	DissonanceFlags []DissonanceFlag    `json:"dissonanceFlags" bson:"dissonanceFlags"`
	TimelineHeatmap []TimelinePoint     `json:"timelineHeatmap" bson:"timelineHeatmap"`
	Strengths       []string            `json:"strengths" bson:"strengths"`
	Priorities      []string            `json:"priorities" bson:"priorities"`
	Transcript      []TranscriptSegment `json:"transcript,omitempty" bson:"transcript,omitempty"`
	CoachingReport  *CoachingReport     `json:"coachingReport,omitempty" bson:"coachingReport,omitempty"`
	Sources         []string            `json:"sources" bson:"sources"`
	Degraded        bool                `json:"degraded" bson:"degraded"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
}

// WithCoachingReport returns a copy of r carrying report. Stored results are
// never mutated in place.
func (r *AnalysisResult) WithCoachingReport(report *CoachingReport) *AnalysisResult {
	out := *r
	out.CoachingReport = report
	return &out
}

// VideoURL is the stream route for a video
func VideoURL(videoID string) string {
	return "/api/videos/" + videoID + "/stream"
}
