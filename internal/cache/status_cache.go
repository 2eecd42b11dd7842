package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"coherence/internal/model"
	"coherence/internal/store"
)

// StatusCache holds the current ProcessingStatus per video. Set replaces
// the whole record.
type StatusCache interface {
	Set(ctx context.Context, status *model.ProcessingStatus) error
	Get(ctx context.Context, videoID string) (*model.ProcessingStatus, error)
	Delete(ctx context.Context, videoID string) error
}

type statusCache struct {
	store store.Store[model.ProcessingStatus]
}

// NewStatusCache creates a Redis-backed status cache. Entries expire after ttl.
func NewStatusCache(client *redis.Client, ttl time.Duration) StatusCache {
	return &statusCache{store: newRedisStore[model.ProcessingStatus](client, "status", ttl)}
}

func NewMemoryStatusCache() StatusCache {
	return &statusCache{store: store.NewMemory[model.ProcessingStatus]()}
}

func (c *statusCache) Set(ctx context.Context, status *model.ProcessingStatus) error {
	return c.store.Put(ctx, status.VideoID, status)
}

func (c *statusCache) Get(ctx context.Context, videoID string) (*model.ProcessingStatus, error) {
	return c.store.Get(ctx, videoID)
}

func (c *statusCache) Delete(ctx context.Context, videoID string) error {
	return c.store.Delete(ctx, videoID)
}
