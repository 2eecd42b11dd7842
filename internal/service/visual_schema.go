package service

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"coherence/internal/model"
)

// visualResponseSchema is sent as the response format and used to check
// the reply. Metric fields also accept strings since models sometimes quote
// numbers.
const visualResponseSchema = `{
  "type": "object",
  "properties": {
    "duration_seconds": {"type": ["number", "string", "null"]},
    "metrics": {
      "type": ["object", "null"],
      "properties": {
        "eye_contact_percentage": {"type": ["number", "string", "null"]},
        "filler_word_count": {"type": ["number", "string", "null"]},
        "fidgeting_count": {"type": ["number", "string", "null"]},
        "speaking_pace_wpm": {"type": ["number", "string", "null"]},
        "gesture_count": {"type": ["number", "string", "null"]}
      }
    },
    "dissonance_flags": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "timestamp_seconds": {"type": ["number", "string", "null"]},
          "end_timestamp_seconds": {"type": ["number", "string", "null"]},
          "type": {"type": "string"},
          "severity": {"type": "string"},
          "description": {"type": "string"},
          "coaching": {"type": "string"},
          "visual_evidence": {"type": "string"},
          "verbal_evidence": {"type": "string"}
        }
      }
    },
    "strengths": {"type": ["array", "null"], "items": {"type": "string"}},
    "priorities": {"type": ["array", "null"], "items": {"type": "string"}},
    "overall_assessment": {"type": ["string", "null"]}
  }
}`

const visualAnalysisPrompt = `You are an expert presentation coach analyzing a presentation video.
Analyze this video for visual-verbal coherence and presentation quality.

1. METRICS (estimate from video):
   - Eye contact percentage: how often the speaker looks at the camera or audience (0-100)
   - Filler word count: instances of "um", "uh", "like", "you know", "basically", "so"
   - Fidgeting count: nervous movements (touching face, adjusting clothes, shifting weight)
   - Speaking pace: estimated words per minute (ideal is 140-160)
   - Gesture count: meaningful hand gestures

2. DISSONANCE FLAGS:
   A) EMOTIONAL_MISMATCH: positive or excited words while the face shows anxiety or a flat expression.
   B) MISSING_GESTURE: deictic phrases ("this", "here", "look at this") without pointing or gesturing.
   C) PACING_MISMATCH: slides change without acknowledgement, or dense content is rushed.

   For each flag give the timestamp in seconds, type, severity (HIGH, MEDIUM or LOW),
   a description, specific coaching advice, the visual evidence and the verbal evidence.

3. STRENGTHS: 2-4 things the presenter does well.
4. PRIORITIES: the top 3 things to improve.
5. OVERALL ASSESSMENT: a 1-2 sentence summary.

Return the analysis in the specified JSON format.`

var (
	visualSchemaOnce sync.Once
	visualSchema     *jsonschema.Schema
	visualSchemaErr  error
)

func compiledVisualSchema() (*jsonschema.Schema, error) {
	visualSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(visualResponseSchema))
		if err != nil {
			visualSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("visual-analysis.json", doc); err != nil {
			visualSchemaErr = err
			return
		}
		visualSchema, visualSchemaErr = c.Compile("visual-analysis.json")
	})
	return visualSchema, visualSchemaErr
}

// parseVisualAnalysis decodes a free-form service reply and folds
// field-name variants into one shape. Only an undecodable reply is an
// error: schema mismatches are logged, and each field is decoded on its own
// so a malformed value drops just that field.
func parseVisualAnalysis(text string, logger *slog.Logger) (*model.VisualAnalysis, error) {
	var doc map[string]any
	if err := decodeLLMJSON(text, &doc); err != nil {
		return nil, fmt.Errorf("decode visual analysis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if schema, err := compiledVisualSchema(); err != nil {
		logger.Error("compile visual schema failed", "error", err)
	} else if err := schema.Validate(doc); err != nil {
		logger.Warn("visual analysis does not match schema, decoding leniently", "error", err)
	}

	metrics, _ := doc["metrics"].(map[string]any)
	out := &model.VisualAnalysis{
		DurationSeconds:   decodeField[float64](doc, "duration_seconds"),
		EyeContactPct:     decodeField[float64](metrics, "eye_contact_percentage", "eye_contact"),
		FillerWordCount:   decodeField[int](metrics, "filler_word_count", "filler_words"),
		FidgetCount:       decodeField[int](metrics, "fidgeting_count", "fidget_count"),
		SpeakingPaceWPM:   decodeField[int](metrics, "speaking_pace_wpm", "speaking_pace"),
		GestureCount:      decodeField[int](metrics, "gesture_count"),
		Strengths:         decodeStrings(doc["strengths"]),
		Priorities:        decodeStrings(doc["priorities"]),
		OverallAssessment: stringField(doc, "overall_assessment"),
	}

	for _, key := range []string{"dissonance_flags", "issues"} {
		items, _ := doc[key].([]any)
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out.Issues = append(out.Issues, decodeIssue(m))
		}
	}
	return out, nil
}

func decodeIssue(m map[string]any) model.VisualIssue {
	issue := model.VisualIssue{
		ID:             stringField(m, "id"),
		Type:           stringField(m, "type"),
		Severity:       stringField(m, "severity"),
		EndTimestamp:   decodeField[float64](m, "end_timestamp_seconds", "endTimestamp", "end_timestamp"),
		Description:    stringField(m, "description"),
		Coaching:       stringField(m, "coaching", "coaching_tip"),
		VisualEvidence: stringField(m, "visual_evidence", "visualEvidence"),
		VerbalEvidence: stringField(m, "verbal_evidence", "verbalEvidence"),
	}
	if ts := decodeField[float64](m, "timestamp_seconds", "timestamp", "start"); ts != nil {
		issue.Timestamp = *ts
	}
	return issue
}

// decodeField returns the first of keys whose value weakly decodes into T.
// Missing, null, blank and undecodable values are skipped.
func decodeField[T any](m map[string]any, keys ...string) *T {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		if str, isStr := raw.(string); isStr {
			if str = strings.TrimSpace(str); str == "" {
				continue
			}
			raw = str
		}
		var v T
		if err := mapstructure.WeakDecode(raw, &v); err != nil {
			continue
		}
		return &v
	}
	return nil
}

// stringField returns the first non-empty string value among keys; values
// of any other type are ignored.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if str, ok := m[key].(string); ok && strings.TrimSpace(str) != "" {
			return str
		}
	}
	return ""
}

func decodeStrings(raw any) []string {
	items, _ := raw.([]any)
	var out []string
	for _, item := range items {
		if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
			out = append(out, str)
		}
	}
	return out
}
