package model

// VisualAnalysis is the visual service's response after field-name
// normalization. Pointer fields are nil when the service omitted them.
type VisualAnalysis struct {
	ExternalVideoID   string        `json:"externalVideoId,omitempty"`
	DurationSeconds   *float64      `json:"durationSeconds,omitempty"`
	EyeContactPct     *float64      `json:"eyeContactPct,omitempty"`
	FillerWordCount   *int          `json:"fillerWordCount,omitempty"`
	FidgetCount       *int          `json:"fidgetCount,omitempty"`
	SpeakingPaceWPM   *int          `json:"speakingPaceWpm,omitempty"`
	GestureCount      *int          `json:"gestureCount,omitempty"`
	Issues            []VisualIssue `json:"issues"`
	Strengths         []string      `json:"strengths"`
	Priorities        []string      `json:"priorities"`
	OverallAssessment string        `json:"overallAssessment,omitempty"`
	// Fallback is set when the service call failed and canned values were used
	Fallback bool `json:"fallback"`
}

// VisualIssue is one loosely-typed issue as reported by the visual service
type VisualIssue struct {
	ID             string   `json:"id,omitempty"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Timestamp      float64  `json:"timestamp"`
	EndTimestamp   *float64 `json:"endTimestamp,omitempty"`
	Description    string   `json:"description"`
	Coaching       string   `json:"coaching"`
	VisualEvidence string   `json:"visualEvidence,omitempty"`
	VerbalEvidence string   `json:"verbalEvidence,omitempty"`
}

type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Punctuated string  `json:"punctuatedWord,omitempty"`
}

// Text returns the punctuated form when the service supplied one
func (w Word) Text() string {
	if w.Punctuated != "" {
		return w.Punctuated
	}
	return w.Word
}

type FillerMetrics struct {
	Total            int            `json:"total"`
	AlwaysFillers    int            `json:"alwaysFillers"`
	ContextualFiller int            `json:"contextualFillers"`
	Breakdown        map[string]int `json:"breakdown"`
	// Judged is false when contextual candidates were not classified
	Judged bool `json:"judged"`
}

type PauseMetrics struct {
	Count         int     `json:"count"`
	TotalSeconds  float64 `json:"totalSeconds"`
	LongestSecond float64 `json:"longestSeconds"`
}

// SpeechAnalysis is the speech service's response after normalization
type SpeechAnalysis struct {
	Transcript      string        `json:"transcript"`
	Confidence      float64       `json:"confidence"`
	Words           []Word        `json:"words"`
	Fillers         FillerMetrics `json:"fillers"`
	Pauses          PauseMetrics  `json:"pauses"`
	PaceWPM         int           `json:"paceWpm"`
	DurationSeconds float64       `json:"durationSeconds"`
}
