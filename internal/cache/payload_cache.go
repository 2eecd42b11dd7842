package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"coherence/internal/model"
	"coherence/internal/store"
)

// Payloads are the raw per-service outputs of one run, kept for coaching
// report regeneration. Either side may be nil.
type Payloads struct {
	Speech *model.SpeechAnalysis
	Visual *model.VisualAnalysis
}

// PayloadCache stores the per-service payloads keyed by video id
type PayloadCache interface {
	Set(ctx context.Context, videoID string, p Payloads) error
	Get(ctx context.Context, videoID string) (Payloads, error)
	Delete(ctx context.Context, videoID string) error
}

type payloadCache struct {
	speech store.Store[model.SpeechAnalysis]
	visual store.Store[model.VisualAnalysis]
}

func NewPayloadCache(client *redis.Client, ttl time.Duration) PayloadCache {
	return &payloadCache{
		speech: newRedisStore[model.SpeechAnalysis](client, "speech", ttl),
		visual: newRedisStore[model.VisualAnalysis](client, "visual", ttl),
	}
}

func NewMemoryPayloadCache() PayloadCache {
	return &payloadCache{
		speech: store.NewMemory[model.SpeechAnalysis](),
		visual: store.NewMemory[model.VisualAnalysis](),
	}
}

// Set stores whichever payloads are present and clears the absent ones so
// a rerun never mixes sources from two runs.
func (c *payloadCache) Set(ctx context.Context, videoID string, p Payloads) error {
	var errs []error
	if p.Speech != nil {
		errs = append(errs, c.speech.Put(ctx, videoID, p.Speech))
	} else {
		errs = append(errs, c.speech.Delete(ctx, videoID))
	}
	if p.Visual != nil {
		errs = append(errs, c.visual.Put(ctx, videoID, p.Visual))
	} else {
		errs = append(errs, c.visual.Delete(ctx, videoID))
	}
	return errors.Join(errs...)
}

func (c *payloadCache) Get(ctx context.Context, videoID string) (Payloads, error) {
	speech, err := c.speech.Get(ctx, videoID)
	if err != nil {
		return Payloads{}, err
	}
	visual, err := c.visual.Get(ctx, videoID)
	if err != nil {
		return Payloads{}, err
	}
	return Payloads{Speech: speech, Visual: visual}, nil
}

func (c *payloadCache) Delete(ctx context.Context, videoID string) error {
	return errors.Join(c.speech.Delete(ctx, videoID), c.visual.Delete(ctx, videoID))
}
