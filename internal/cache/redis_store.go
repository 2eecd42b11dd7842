package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore is a store.Store that keeps JSON values under
// "video:{id}:{suffix}" with a TTL.
type redisStore[T any] struct {
	client *redis.Client
	suffix string
	ttl    time.Duration
}

func newRedisStore[T any](client *redis.Client, suffix string, ttl time.Duration) *redisStore[T] {
	return &redisStore[T]{client: client, suffix: suffix, ttl: ttl}
}

func (c *redisStore[T]) key(id string) string {
	return fmt.Sprintf("video:%s:%s", id, c.suffix)
}

func (c *redisStore[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *redisStore[T]) Put(ctx context.Context, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(id), data, c.ttl).Err()
}

func (c *redisStore[T]) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
