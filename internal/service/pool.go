package service

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many blocking upstream calls run at once across all
// processing runs.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Do runs fn once a slot is free. It returns ctx's error if the context ends
// while waiting.
func (p *WorkerPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

func (p *WorkerPool) Size() int {
	return p.size
}
