package analysis

import (
	"math"
	"strings"

	"coherence/internal/model"
)

// SegmentWords is the maximum number of words per transcript segment
const SegmentWords = 10

// Segment groups timestamped words into segments of up to SegmentWords
// words, breaking early after a sentence terminator. The final partial
// group is always flushed.
func Segment(words []model.Word) []model.TranscriptSegment {
	if len(words) == 0 {
		return nil
	}
	var (
		segments []model.TranscriptSegment
		group    []model.Word
	)
	flush := func() {
		if len(group) == 0 {
			return
		}
		texts := make([]string, 0, len(group))
		var conf float64
		for _, w := range group {
			texts = append(texts, w.Text())
			conf += w.Confidence
		}
		start, end := nonNegative(group[0].Start), nonNegative(group[len(group)-1].End)
		if end < start {
			end = start
		}
		segments = append(segments, model.TranscriptSegment{
			Text:       strings.Join(texts, " "),
			Start:      start,
			End:        end,
			Confidence: clampFloat(conf/float64(len(group)), 0, 1),
		})
		group = group[:0]
	}
	for _, w := range words {
		group = append(group, w)
		if len(group) >= SegmentWords || endsSentence(w.Text()) {
			flush()
		}
	}
	flush()
	return segments
}

func endsSentence(token string) bool {
	token = strings.TrimRight(token, `"')]`)
	return strings.HasSuffix(token, ".") || strings.HasSuffix(token, "!") || strings.HasSuffix(token, "?")
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
