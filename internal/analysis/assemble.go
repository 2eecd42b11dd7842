package analysis

import (
	"time"

	"coherence/internal/model"
)

// Source names recorded on a result
const (
	SourceSpeech = "speech"
	SourceVisual = "visual"
)

// AssembleInput carries whatever the two analyses produced. Either payload
// may be nil.
type AssembleInput struct {
	VideoID string
	Speech  *model.SpeechAnalysis
	Visual  *model.VisualAnalysis
	Now     time.Time
}

// Assemble merges the available payloads into one result. With neither
// source usable it returns FallbackResult.
func Assemble(in AssembleInput) *model.AnalysisResult {
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	speech := ExtractSpeech(in.Speech)
	visual := ExtractVisual(in.Visual)
	if !speech.Available && !visual.Available {
		return FallbackResult(in.VideoID, in.Now)
	}

	metrics := MergeMetrics(speech, visual)
	duration := pickFloat(speech.Duration, visual.Duration, DefaultDurationSeconds)

	var serviceFlags []model.DissonanceFlag
	if in.Visual != nil {
		serviceFlags = NormalizeFlags(in.Visual.Issues)
	}
	high, medium := CountSeverities(serviceFlags)
	score, _ := Score(ScoreInput{
		EyeContactPct: metrics.EyeContact,
		FillerCount:   metrics.FillerWords,
		FidgetCount:   metrics.Fidgeting,
		PaceWPM:       metrics.SpeakingPace,
		HighFlags:     high,
		MediumFlags:   medium,
	})

	flags := serviceFlags
	if len(flags) == 0 {
		flags = SynthesizeFlags(metrics, duration)
	}
	sortFlags(flags)

	strengths, priorities := Insights(metrics, flags)
	if in.Visual != nil {
		if s := nonEmpty(in.Visual.Strengths); len(s) > 0 {
			strengths = truncate(s, MaxStrengths)
		}
		if p := nonEmpty(in.Visual.Priorities); len(p) > 0 {
			priorities = truncate(p, MaxPriorities)
		}
	}

	result := &model.AnalysisResult{
		VideoID:         in.VideoID,
		VideoURL:        model.VideoURL(in.VideoID),
		DurationSeconds: duration,
		CoherenceScore:  score,
		ScoreTier:       TierFor(score),
		Metrics:         metrics,
		DissonanceFlags: flags,
		TimelineHeatmap: Timeline(flags),
		Strengths:       strengths,
		Priorities:      priorities,
		Sources:         sources(speech, visual),
		Degraded:        !speech.Available || !visual.Available || (in.Visual != nil && in.Visual.Fallback),
		CreatedAt:       in.Now,
	}
	if in.Speech != nil && len(in.Speech.Words) > 0 {
		result.Transcript = Segment(in.Speech.Words)
	}
	return result
}

// MergeMetrics applies source priority field by field: speech first for
// pace and fillers, visual only for eye contact and fidgeting.
func MergeMetrics(speech SpeechMetrics, visual VisualMetrics) model.AnalysisMetrics {
	return model.AnalysisMetrics{
		EyeContact:         visual.EyeContact.Value,
		Fidgeting:          visual.Fidget.Value,
		FillerWords:        pickInt(speech.Fillers, visual.Fillers, DefaultFillerCount),
		SpeakingPace:       pickInt(speech.PaceWPM, visual.PaceWPM, DefaultPaceWPM),
		SpeakingPaceTarget: model.PaceTarget,
	}
}

func pickInt(first, second IntField, def int) int {
	switch {
	case first.Present:
		return first.Value
	case second.Present:
		return second.Value
	default:
		return def
	}
}

func pickFloat(first, second FloatField, def float64) float64 {
	switch {
	case first.Present:
		return first.Value
	case second.Present:
		return second.Value
	default:
		return def
	}
}

func sources(speech SpeechMetrics, visual VisualMetrics) []string {
	out := []string{}
	if visual.Available {
		out = append(out, SourceVisual)
	}
	if speech.Available {
		out = append(out, SourceSpeech)
	}
	return out
}
