package analysis

import "coherence/internal/model"

const (
	MaxStrengths  = 4
	MaxPriorities = 3
)

// Insights derives strengths and priorities from metrics when the visual
// service supplied none. Both lists are non-empty.
func Insights(m model.AnalysisMetrics, flags []model.DissonanceFlag) (strengths, priorities []string) {
	if m.EyeContact >= 70 {
		strengths = append(strengths, "Strong eye contact with camera")
	}
	if m.FillerWords <= 5 {
		strengths = append(strengths, "Clear speech with minimal filler words")
	}
	if m.Fidgeting <= 3 {
		strengths = append(strengths, "Calm and composed body language")
	}
	if m.SpeakingPace >= 140 && m.SpeakingPace <= 160 {
		strengths = append(strengths, "Well-paced delivery")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "Good effort and engagement")
	}

	if m.EyeContact < 60 {
		priorities = append(priorities, "Increase eye contact with camera")
	}
	if m.FillerWords > 10 {
		priorities = append(priorities, "Reduce filler words (um, uh, like)")
	}
	if m.Fidgeting > 5 {
		priorities = append(priorities, "Minimize nervous fidgeting")
	}
	switch {
	case m.SpeakingPace > 180:
		priorities = append(priorities, "Slow down your speaking pace")
	case m.SpeakingPace < 120:
		priorities = append(priorities, "Increase energy and speaking pace")
	}
	for i, f := range flags {
		if i == 2 {
			break
		}
		switch f.Type {
		case model.EmotionalMismatch:
			priorities = appendUnique(priorities, "Match facial expressions to your words")
		case model.MissingGesture:
			priorities = appendUnique(priorities, "Use gestures when referencing content")
		}
	}
	if len(priorities) == 0 {
		priorities = append(priorities, "Continue practicing for consistency")
	}
	return truncate(strengths, MaxStrengths), truncate(priorities, MaxPriorities)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func truncate(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

// nonEmpty drops blank entries from a service-supplied list
func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
