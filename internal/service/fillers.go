package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"coherence/internal/model"
)

// alwaysFillers are vocal disfluencies that count regardless of context
var alwaysFillers = map[string]bool{
	"um": true, "uh": true, "uhh": true, "umm": true, "er": true,
	"err": true, "ah": true, "ahh": true, "hmm": true, "mm": true,
}

// contextualFillers only count when a judge decides they carry no meaning
var contextualFillers = map[string]bool{
	"like": true, "basically": true, "actually": true, "literally": true,
	"so": true, "well": true, "right": true, "okay": true, "ok": true,
}

const (
	youKnow        = "you know"
	contextRadius  = 5
	maxJudgedBatch = 80
)

// FillerCandidate is a context-dependent token awaiting a judgement
type FillerCandidate struct {
	ID      int    `json:"id"`
	Token   string `json:"token"`
	Context string `json:"context"`
	// words covered, usually one; two for "you know"
	first, last int
}

// ContextualJudge decides which candidates are fillers. Implementations
// may fail; the classifier then ignores contextual candidates.
type ContextualJudge interface {
	JudgeFillers(ctx context.Context, candidates []FillerCandidate) (map[int]bool, error)
}

// FillerClassifier counts filler words in two tiers
type FillerClassifier struct {
	judge  ContextualJudge
	logger *slog.Logger
}

// NewFillerClassifier creates a classifier; judge may be nil
func NewFillerClassifier(judge ContextualJudge, logger *slog.Logger) *FillerClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FillerClassifier{judge: judge, logger: logger.With("component", "fillers")}
}

// Classify returns filler metrics and, per word, whether it was counted as
// a filler.
func (c *FillerClassifier) Classify(ctx context.Context, words []model.Word) (model.FillerMetrics, []bool) {
	metrics := model.FillerMetrics{Breakdown: map[string]int{}}
	isFiller := make([]bool, len(words))
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = normalizeToken(w.Word)
	}

	var candidates []FillerCandidate
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case i+1 < len(tokens) && tok+" "+tokens[i+1] == youKnow:
			candidates = append(candidates, newCandidate(len(candidates), youKnow, words, i, i+1))
			i++
		case alwaysFillers[tok]:
			isFiller[i] = true
			metrics.AlwaysFillers++
			metrics.Breakdown[tok]++
		case contextualFillers[tok]:
			candidates = append(candidates, newCandidate(len(candidates), tok, words, i, i))
		}
	}

	if len(candidates) > 0 && c.judge != nil {
		verdicts, err := c.judgeAll(ctx, candidates)
		if err != nil {
			c.logger.Warn("contextual filler judgement failed, counting disfluencies only", "error", err)
		} else {
			metrics.Judged = true
			for _, cand := range candidates {
				if !verdicts[cand.ID] {
					continue
				}
				for j := cand.first; j <= cand.last; j++ {
					isFiller[j] = true
				}
				metrics.ContextualFiller++
				metrics.Breakdown[cand.Token]++
			}
		}
	}

	metrics.Total = metrics.AlwaysFillers + metrics.ContextualFiller
	return metrics, isFiller
}

func (c *FillerClassifier) judgeAll(ctx context.Context, candidates []FillerCandidate) (map[int]bool, error) {
	verdicts := make(map[int]bool, len(candidates))
	for start := 0; start < len(candidates); start += maxJudgedBatch {
		end := min(start+maxJudgedBatch, len(candidates))
		batch, err := c.judge.JudgeFillers(ctx, candidates[start:end])
		if err != nil {
			return nil, err
		}
		for id, v := range batch {
			verdicts[id] = v
		}
	}
	return verdicts, nil
}

func newCandidate(id int, token string, words []model.Word, first, last int) FillerCandidate {
	lo := max(0, first-contextRadius)
	hi := min(len(words), last+contextRadius+1)
	parts := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		text := words[i].Text()
		if i == first {
			text = "[" + text
		}
		if i == last {
			text += "]"
		}
		parts = append(parts, text)
	}
	return FillerCandidate{ID: id, Token: token, Context: strings.Join(parts, " "), first: first, last: last}
}

func normalizeToken(s string) string {
	return strings.Trim(cases.Fold().String(strings.TrimSpace(s)), `.,!?;:"'()`)
}

// GeminiFillerJudge asks Gemini which bracketed tokens are fillers
type GeminiFillerJudge struct {
	gemini *GeminiClient
}

func NewGeminiFillerJudge(gemini *GeminiClient) *GeminiFillerJudge {
	return &GeminiFillerJudge{gemini: gemini}
}

func (j *GeminiFillerJudge) JudgeFillers(ctx context.Context, candidates []FillerCandidate) (map[int]bool, error) {
	var reply struct {
		Verdicts []struct {
			ID       int  `json:"id"`
			IsFiller bool `json:"isFiller"`
		} `json:"verdicts"`
	}
	if err := j.gemini.GenerateJSON(ctx, j.gemini.Models().Fillers, buildFillerPrompt(candidates), &reply); err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(reply.Verdicts))
	for _, v := range reply.Verdicts {
		out[v.ID] = v.IsFiller
	}
	return out, nil
}

func buildFillerPrompt(candidates []FillerCandidate) string {
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "%d: %s\n", c.ID, c.Context)
	}
	return fmt.Sprintf(`You are reviewing a presentation transcript. Each line below shows one bracketed word or phrase with surrounding context.
Decide whether the bracketed text is a filler (adds no meaning, e.g. "it was, [like], really good") or meaningful (e.g. "I [like] this design").

%s
Return ONLY valid JSON matching this schema:
{"verdicts": [{"id": 0, "isFiller": true}]}`, b.String())
}
