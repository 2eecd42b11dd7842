package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"coherence/internal/model"
)

// MaxFlags caps the service-sourced flag list
const MaxFlags = 10

// Synthesis thresholds: a metric outside these bounds yields a coaching flag.
const (
	eyeContactIdeal = 90
	fillerIdeal     = 3
	fidgetIdeal     = 2
	paceIdealLow    = 130
	paceIdealHigh   = 170
)

// NormalizeFlags converts raw visual issues into canonical flags. Bad enum
// values are defaulted, never reported. Flag ids are unique: the first use
// of a supplied id keeps it, blanks and repeats get the next free flag-N.
func NormalizeFlags(issues []model.VisualIssue) []model.DissonanceFlag {
	if len(issues) > MaxFlags {
		issues = issues[:MaxFlags]
	}
	used := make(map[string]bool, len(issues))
	for _, issue := range issues {
		if id := strings.TrimSpace(issue.ID); id != "" {
			used[id] = true
		}
	}
	kept := make(map[string]bool, len(issues))
	next := 0
	flags := make([]model.DissonanceFlag, 0, len(issues))
	for _, issue := range issues {
		f := model.DissonanceFlag{
			ID:             strings.TrimSpace(issue.ID),
			Timestamp:      nonNegative(issue.Timestamp),
			Type:           ParseDissonanceType(issue.Type),
			Severity:       ParseSeverity(issue.Severity),
			Description:    issue.Description,
			Coaching:       issue.Coaching,
			VisualEvidence: issue.VisualEvidence,
			VerbalEvidence: issue.VerbalEvidence,
		}
		if f.ID == "" || kept[f.ID] {
			for {
				next++
				f.ID = fmt.Sprintf("flag-%d", next)
				if !used[f.ID] {
					break
				}
			}
			used[f.ID] = true
		}
		kept[f.ID] = true
		if issue.EndTimestamp != nil && !math.IsNaN(*issue.EndTimestamp) && *issue.EndTimestamp >= f.Timestamp {
			end := *issue.EndTimestamp
			f.EndTimestamp = &end
		}
		flags = append(flags, f)
	}
	return flags
}

// ParseDissonanceType accepts the canonical names in any case as well as
// the short forms the visual service sometimes returns.
func ParseDissonanceType(s string) model.DissonanceType {
	switch canonicalToken(s) {
	case "EMOTIONAL_MISMATCH", "EMOTIONAL", "EMOTION":
		return model.EmotionalMismatch
	case "MISSING_GESTURE", "GESTURE", "GESTURE_MISMATCH":
		return model.MissingGesture
	case "PACING_MISMATCH", "PACING", "PACE":
		return model.PacingMismatch
	default:
		return model.EmotionalMismatch
	}
}

func ParseSeverity(s string) model.Severity {
	switch canonicalToken(s) {
	case "HIGH", "CRITICAL", "SEVERE":
		return model.SeverityHigh
	case "LOW", "MINOR":
		return model.SeverityLow
	default:
		return model.SeverityMedium
	}
}

func canonicalToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// SynthesizeFlags derives coaching flags from metric thresholds. It always
// returns at least one flag.
func SynthesizeFlags(m model.AnalysisMetrics, duration float64) []model.DissonanceFlag {
	if !validPositive(duration) {
		duration = DefaultDurationSeconds
	}
	var flags []model.DissonanceFlag
	add := func(f model.DissonanceFlag) {
		f.ID = fmt.Sprintf("metric-flag-%d", len(flags)+1)
		flags = append(flags, f)
	}

	if m.EyeContact < eyeContactIdeal {
		add(model.DissonanceFlag{
			Timestamp:      duration * 0.25,
			Type:           model.EmotionalMismatch,
			Severity:       scaleDown(m.EyeContact, 70, 50),
			Description:    "Eye contact could be stronger. Try looking directly at the camera more consistently.",
			Coaching:       "Practice the 'triangle method': look at your camera, then left of frame, then right, and back to camera. This creates natural eye movement while maintaining engagement.",
			VisualEvidence: "Eye contact analysis throughout video",
		})
	}
	if m.FillerWords > fillerIdeal {
		add(model.DissonanceFlag{
			Timestamp:      duration * 0.4,
			Type:           model.PacingMismatch,
			Severity:       scaleUp(m.FillerWords, 5, 10),
			Description:    "Detected filler words like 'um', 'uh', or 'like'. These can distract from your message.",
			Coaching:       "Try the 'pause and breathe' technique: when you feel a filler word coming, pause briefly and take a breath instead. Silence is more powerful than fillers.",
			VerbalEvidence: "Filler word detection throughout audio",
		})
	}
	if m.Fidgeting > fidgetIdeal {
		add(model.DissonanceFlag{
			Timestamp:      duration * 0.5,
			Type:           model.MissingGesture,
			Severity:       scaleUp(m.Fidgeting, 3, 6),
			Description:    "Nervous movements detected. This can signal anxiety to your audience.",
			Coaching:       "Ground yourself: before starting, plant your feet firmly and keep your hands visible. If you need to move, make it purposeful by stepping toward your audience or gesturing to emphasize points.",
			VisualEvidence: "Body language analysis throughout video",
		})
	}
	if m.SpeakingPace < paceIdealLow || m.SpeakingPace > paceIdealHigh {
		f := model.DissonanceFlag{
			Timestamp:      duration * 0.6,
			Type:           model.PacingMismatch,
			VerbalEvidence: fmt.Sprintf("Speaking pace analysis: %d WPM (optimal: %s WPM)", m.SpeakingPace, model.PaceTarget),
		}
		if m.SpeakingPace < paceIdealLow {
			f.Severity = model.SeverityMedium
			if m.SpeakingPace >= 110 {
				f.Severity = model.SeverityLow
			}
			f.Description = "Your speaking pace is slower than optimal. This might cause the audience to lose engagement."
			f.Coaching = "Try practicing with slightly more energy. Imagine you're telling an exciting story to a friend. Varying your pace keeps audiences engaged."
		} else {
			f.Severity = model.SeverityMedium
			if m.SpeakingPace <= 180 {
				f.Severity = model.SeverityLow
			}
			f.Description = "Your speaking pace is faster than optimal. The audience may struggle to follow."
			f.Coaching = "Practice the 'headline pause' technique: after each key point, pause for 1-2 seconds. This lets your message sink in and naturally slows your pace."
		}
		add(f)
	}

	if len(flags) == 0 {
		add(model.DissonanceFlag{
			Timestamp:      duration * 0.3,
			Type:           model.EmotionalMismatch,
			Severity:       model.SeverityLow,
			Description:    "Great presentation! Here's a tip to make it even better: vary your vocal tone for emphasis.",
			Coaching:       "Try the 'word emphasis' technique: identify 2-3 key words in each sentence and emphasize them with slight volume or pitch changes. This adds natural energy and highlights your main points.",
			VisualEvidence: "Overall presentation quality assessment",
			VerbalEvidence: "Voice analysis throughout audio",
		})
	}
	return flags
}

// scaleDown grades a metric where higher is better
func scaleDown(v, lowAt, mediumAt int) model.Severity {
	switch {
	case v >= lowAt:
		return model.SeverityLow
	case v >= mediumAt:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

// scaleUp grades a count where lower is better
func scaleUp(v, lowAt, mediumAt int) model.Severity {
	switch {
	case v <= lowAt:
		return model.SeverityLow
	case v <= mediumAt:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

// CountSeverities tallies high and medium flags for the penalty term
func CountSeverities(flags []model.DissonanceFlag) (high, medium int) {
	for _, f := range flags {
		switch f.Severity {
		case model.SeverityHigh:
			high++
		case model.SeverityMedium:
			medium++
		}
	}
	return high, medium
}

// Timeline projects flags onto (timestamp, severity) points in time order
func Timeline(flags []model.DissonanceFlag) []model.TimelinePoint {
	points := make([]model.TimelinePoint, 0, len(flags))
	for _, f := range flags {
		points = append(points, model.TimelinePoint{Timestamp: f.Timestamp, Severity: f.Severity})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	return points
}

func sortFlags(flags []model.DissonanceFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Timestamp < flags[j].Timestamp
	})
}

func nonNegative(f float64) float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
