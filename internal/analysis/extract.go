// Package analysis turns per-service payloads into a scored AnalysisResult.
// Nothing here performs I/O.
package analysis

import (
	"math"

	"coherence/internal/model"
)

// Defaults used whenever a source is absent or a field is unusable.
const (
	DefaultPaceWPM         = 150
	DefaultEyeContactPct   = 60
	DefaultFidgetCount     = 5
	DefaultFillerCount     = 0
	DefaultDurationSeconds = 120.0
)

// IntField is an extracted integer together with whether the source
// actually supplied it.
type IntField struct {
	Value   int
	Present bool
}

type FloatField struct {
	Value   float64
	Present bool
}

// SpeechMetrics are the fields the speech service can contribute
type SpeechMetrics struct {
	Available bool
	PaceWPM   IntField
	Fillers   IntField
	Duration  FloatField
}

// VisualMetrics are the fields the visual service can contribute
type VisualMetrics struct {
	Available  bool
	EyeContact IntField
	Fidget     IntField
	Fillers    IntField
	PaceWPM    IntField
	Duration   FloatField
}

// ExtractSpeech never fails: missing or malformed fields come back with
// their default value and Present=false.
func ExtractSpeech(s *model.SpeechAnalysis) SpeechMetrics {
	m := SpeechMetrics{
		PaceWPM:  IntField{Value: DefaultPaceWPM},
		Fillers:  IntField{Value: DefaultFillerCount},
		Duration: FloatField{Value: DefaultDurationSeconds},
	}
	if s == nil {
		return m
	}
	m.Available = true
	if s.PaceWPM > 0 {
		m.PaceWPM = IntField{Value: s.PaceWPM, Present: true}
	}
	if s.Fillers.Total >= 0 {
		m.Fillers = IntField{Value: s.Fillers.Total, Present: true}
	}
	if validPositive(s.DurationSeconds) {
		m.Duration = FloatField{Value: s.DurationSeconds, Present: true}
	}
	return m
}

func ExtractVisual(v *model.VisualAnalysis) VisualMetrics {
	m := VisualMetrics{
		EyeContact: IntField{Value: DefaultEyeContactPct},
		Fidget:     IntField{Value: DefaultFidgetCount},
		Fillers:    IntField{Value: DefaultFillerCount},
		PaceWPM:    IntField{Value: DefaultPaceWPM},
		Duration:   FloatField{Value: DefaultDurationSeconds},
	}
	if v == nil {
		return m
	}
	m.Available = true
	if v.EyeContactPct != nil && !math.IsNaN(*v.EyeContactPct) {
		m.EyeContact = IntField{Value: int(math.Round(math.Min(math.Max(*v.EyeContactPct, 0), 100))), Present: true}
	}
	if v.FidgetCount != nil {
		m.Fidget = IntField{Value: max(*v.FidgetCount, 0), Present: true}
	}
	if v.FillerWordCount != nil {
		m.Fillers = IntField{Value: max(*v.FillerWordCount, 0), Present: true}
	}
	if v.SpeakingPaceWPM != nil && *v.SpeakingPaceWPM > 0 {
		m.PaceWPM = IntField{Value: *v.SpeakingPaceWPM, Present: true}
	}
	if v.DurationSeconds != nil && validPositive(*v.DurationSeconds) {
		m.Duration = FloatField{Value: *v.DurationSeconds, Present: true}
	}
	return m
}

func validPositive(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
