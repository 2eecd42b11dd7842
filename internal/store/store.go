// Package store provides the keyed Get/Put/Delete abstraction used by the
// in-memory repositories and caches.
package store

import (
	"context"
	"sync"
)

// Store holds values of T keyed by video id. Get returns (nil, nil) on a miss.
type Store[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Put(ctx context.Context, id string, v *T) error
	Delete(ctx context.Context, id string) error
}

// Memory is a process-local Store. Values are stored by copy; slices inside
// them are shared and treated as read-only.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[string]*entry[T]
}

type entry[T any] struct {
	mu    sync.RWMutex
	value T
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{items: make(map[string]*entry[T])}
}

func (m *Memory[T]) Get(_ context.Context, id string) (*T, error) {
	m.mu.RLock()
	e, ok := m.items[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := e.value
	return &v, nil
}

func (m *Memory[T]) Put(_ context.Context, id string, v *T) error {
	if v == nil {
		return nil
	}
	m.mu.Lock()
	e, ok := m.items[id]
	if !ok {
		e = &entry[T]{}
		m.items[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	e.value = *v
	e.mu.Unlock()
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored keys
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
