package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"coherence/internal/cache"
	"coherence/internal/model"
	"coherence/internal/repository"
)

const (
	maxPromptFlags       = 5
	maxPromptTranscript  = 4000
	maxCoachingListItems = 5
)

// CoachingService writes the optional narrative report for a result
type CoachingService struct {
	gemini   *GeminiClient
	results  repository.ResultRepo
	payloads cache.PayloadCache
	markdown goldmark.Markdown
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoachingService creates a coaching service. results and payloads are
// only needed by Regenerate.
func NewCoachingService(gemini *GeminiClient, results repository.ResultRepo, payloads cache.PayloadCache, logger *slog.Logger) *CoachingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoachingService{
		gemini:   gemini,
		results:  results,
		payloads: payloads,
		markdown: goldmark.New(),
		logger:   logger.With("component", "coaching"),
		now:      time.Now,
	}
}

func (s *CoachingService) Available() bool {
	return s.gemini.Available()
}

type coachingReply struct {
	Headline            string   `json:"headline"`
	Summary             string   `json:"summary"`
	OverallAssessment   string   `json:"overallAssessment"`
	KeyStrengths        []string `json:"keyStrengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	ImmediateActions    []string `json:"immediateActions"`
	PracticeExercises   []string `json:"practiceExercises"`
}

type lessonsReply struct {
	Lessons []struct {
		ProblemType    string   `json:"problem_type"`
		Title          string   `json:"title"`
		Description    string   `json:"description"`
		Exercises      []string `json:"exercises"`
		Timeline       string   `json:"timeline"`
		SuccessMetrics string   `json:"success_metrics"`
		Priority       int      `json:"priority"`
	} `json:"lessons"`
}

// Generate asks the LLM for a report on result. Lessons are requested
// separately and left out if that call fails.
func (s *CoachingService) Generate(ctx context.Context, result *model.AnalysisResult, payloads cache.Payloads) (*model.CoachingReport, error) {
	if !s.Available() {
		return nil, fmt.Errorf("coaching: %w", ErrUnavailable)
	}
	models := s.gemini.Models()

	prompt, err := buildCoachingPrompt(result, payloads)
	if err != nil {
		return nil, err
	}
	var reply coachingReply
	if err := s.gemini.GenerateJSON(ctx, models.Coaching, prompt, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Summary) == "" {
		return nil, fmt.Errorf("coaching: empty summary from %s", models.Coaching)
	}

	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(reply.Summary), &html); err != nil {
		return nil, fmt.Errorf("coaching: render summary: %w", err)
	}

	report := &model.CoachingReport{
		Headline:            reply.Headline,
		Summary:             reply.Summary,
		SummaryHTML:         html.String(),
		OverallAssessment:   reply.OverallAssessment,
		KeyStrengths:        truncateList(reply.KeyStrengths),
		AreasForImprovement: truncateList(reply.AreasForImprovement),
		ImmediateActions:    truncateList(reply.ImmediateActions),
		PracticeExercises:   truncateList(reply.PracticeExercises),
		GeneratedAt:         s.now().UTC(),
		ModelUsed:           models.Coaching,
	}

	lessons, err := s.lessons(ctx, result)
	if err != nil {
		s.logger.Warn("lesson generation failed", "video", result.VideoID, "error", err)
	} else {
		report.Lessons = lessons
	}
	return report, nil
}

func (s *CoachingService) lessons(ctx context.Context, result *model.AnalysisResult) ([]model.ImprovementLesson, error) {
	var reply lessonsReply
	if err := s.gemini.GenerateJSON(ctx, s.gemini.Models().Lessons, buildLessonsPrompt(result), &reply); err != nil {
		return nil, err
	}
	out := make([]model.ImprovementLesson, 0, len(reply.Lessons))
	for _, l := range reply.Lessons {
		if l.Title == "" {
			continue
		}
		out = append(out, model.ImprovementLesson{
			ProblemType:    l.ProblemType,
			Title:          l.Title,
			Description:    l.Description,
			Exercises:      l.Exercises,
			Timeline:       l.Timeline,
			SuccessMetrics: l.SuccessMetrics,
			Priority:       max(l.Priority, 1),
		})
	}
	slices.SortStableFunc(out, func(a, b model.ImprovementLesson) int {
		return a.Priority - b.Priority
	})
	return out, nil
}

// Regenerate rebuilds the report for a stored result from its cached
// payloads and saves the updated result.
func (s *CoachingService) Regenerate(ctx context.Context, videoID string) (*model.AnalysisResult, error) {
	result, err := s.results.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNotFound
	}
	payloads, err := s.payloads.Get(ctx, videoID)
	if err != nil {
		s.logger.Warn("payload lookup failed, coaching from result only", "video", videoID, "error", err)
		payloads = cache.Payloads{}
	}

	report, err := s.Generate(ctx, result, payloads)
	if err != nil {
		return nil, err
	}
	updated := result.WithCoachingReport(report)
	if err := s.results.Save(ctx, updated); err != nil {
		return nil, err
	}
	s.logger.Info("coaching report regenerated", "video", videoID)
	return updated, nil
}

type coachingContext struct {
	CoherenceScore  int                    `json:"coherenceScore"`
	ScoreTier       model.ScoreTier        `json:"scoreTier"`
	DurationSeconds float64                `json:"durationSeconds"`
	Metrics         model.AnalysisMetrics  `json:"metrics"`
	Flags           []model.DissonanceFlag `json:"dissonanceFlags"`
	Sources         []string               `json:"sources"`
	Speech          *coachingSpeechContext `json:"speech,omitempty"`
	Visual          *coachingVisualContext `json:"visual,omitempty"`
}

type coachingSpeechContext struct {
	Transcript string              `json:"transcript"`
	PaceWPM    int                 `json:"speakingPaceWpm"`
	Fillers    model.FillerMetrics `json:"fillerWords"`
	Pauses     model.PauseMetrics  `json:"pauses"`
}

type coachingVisualContext struct {
	GestureCount      *int     `json:"gestureCount,omitempty"`
	Strengths         []string `json:"strengthsDetected"`
	Priorities        []string `json:"prioritiesDetected"`
	OverallAssessment string   `json:"overallAssessment"`
}

func buildCoachingPrompt(result *model.AnalysisResult, payloads cache.Payloads) (string, error) {
	cc := coachingContext{
		CoherenceScore:  result.CoherenceScore,
		ScoreTier:       result.ScoreTier,
		DurationSeconds: result.DurationSeconds,
		Metrics:         result.Metrics,
		Flags:           result.DissonanceFlags,
		Sources:         result.Sources,
	}
	if p := payloads.Speech; p != nil {
		transcript := p.Transcript
		if len(transcript) > maxPromptTranscript {
			transcript = transcript[:maxPromptTranscript] + "..."
		}
		cc.Speech = &coachingSpeechContext{
			Transcript: transcript,
			PaceWPM:    p.PaceWPM,
			Fillers:    p.Fillers,
			Pauses:     p.Pauses,
		}
	}
	if p := payloads.Visual; p != nil && !p.Fallback {
		cc.Visual = &coachingVisualContext{
			GestureCount:      p.GestureCount,
			Strengths:         p.Strengths,
			Priorities:        p.Priorities,
			OverallAssessment: p.OverallAssessment,
		}
	}
	data, err := json.MarshalIndent(cc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("coaching: encode context: %w", err)
	}

	return fmt.Sprintf(`You are an expert presentation coach reviewing a recorded presentation.
You have the scored analysis below, combining speech transcription with visual body-language analysis.
Synthesize both sources into a coaching report that is specific, actionable and encouraging but honest.
Reference timestamps from the dissonance flags where useful.

ANALYSIS DATA:
%s

Return ONLY valid JSON with this exact structure:
{
  "headline": "one short sentence",
  "summary": "2-3 sentence executive summary, markdown allowed",
  "overallAssessment": "a detailed paragraph",
  "keyStrengths": ["..."],
  "areasForImprovement": ["..."],
  "immediateActions": ["..."],
  "practiceExercises": ["..."]
}
List 3-5 items per array.`, data), nil
}

func buildLessonsPrompt(result *model.AnalysisResult) string {
	m := result.Metrics
	var issues []string
	if m.EyeContact < 70 {
		issues = append(issues, fmt.Sprintf("- Eye contact: %d%% (below recommended 70%%)", m.EyeContact))
	}
	if m.FillerWords > 5 {
		issues = append(issues, fmt.Sprintf("- Filler words: %d detected (target: <5)", m.FillerWords))
	}
	if m.Fidgeting > 5 {
		issues = append(issues, fmt.Sprintf("- Nervous gestures/fidgeting: %d instances (target: <5)", m.Fidgeting))
	}
	if m.SpeakingPace < 120 || m.SpeakingPace > 170 {
		issues = append(issues, fmt.Sprintf("- Speaking pace: %d WPM (optimal: 140-160 WPM)", m.SpeakingPace))
	}

	counts := map[model.DissonanceType][2]int{}
	var order []model.DissonanceType
	for _, f := range result.DissonanceFlags {
		c, seen := counts[f.Type]
		if !seen {
			order = append(order, f.Type)
		}
		c[0]++
		if f.Severity == model.SeverityHigh {
			c[1]++
		}
		counts[f.Type] = c
	}
	for _, t := range order {
		c := counts[t]
		issues = append(issues, fmt.Sprintf("- %s: %d instances (%d high severity)", t, c[0], c[1]))
	}
	issueText := "No major issues detected."
	if len(issues) > 0 {
		issueText = strings.Join(issues, "\n")
	}

	flags := result.DissonanceFlags
	if len(flags) > maxPromptFlags {
		flags = flags[:maxPromptFlags]
	}
	flagJSON, _ := json.MarshalIndent(flags, "", "  ")

	return fmt.Sprintf(`You are an expert presentation coach. Create personalized improvement lessons for this presenter.

ANALYSIS SUMMARY:
- Overall Coherence Score: %d/100
- Eye Contact: %d%%
- Filler Words: %d instances
- Fidgeting/Nervous Gestures: %d instances
- Speaking Pace: %d WPM

ISSUES IDENTIFIED:
%s

DISSONANCE FLAGS (%d total):
%s

Generate 3-5 lessons, each targeting one specific weakness, most impactful first.
Skip areas where the presenter already scored well.

Return ONLY valid JSON in this format:
{
  "lessons": [
    {
      "problem_type": "eye_contact",
      "title": "Master the Power of Eye Contact",
      "description": "2-3 sentences on why this matters",
      "exercises": ["3-5 exercises the presenter can do today"],
      "timeline": "1-2 weeks with daily practice",
      "success_metrics": "how to measure improvement",
      "priority": 1
    }
  ]
}`, result.CoherenceScore, m.EyeContact, m.FillerWords, m.Fidgeting, m.SpeakingPace,
		issueText, len(result.DissonanceFlags), flagJSON)
}

func truncateList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
		if len(out) == maxCoachingListItems {
			break
		}
	}
	return out
}
