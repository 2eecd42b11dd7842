package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
}

func TestMemory_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[record]()

	got, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, m.Put(ctx, "a", &record{Name: "first", Count: 1}))
	require.NoError(t, m.Put(ctx, "a", &record{Name: "second", Count: 2}))

	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, &record{Name: "second", Count: 2}, got)

	require.NoError(t, m.Delete(ctx, "a"))
	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[record]()
	in := &record{Name: "orig"}
	require.NoError(t, m.Put(ctx, "k", in))
	in.Name = "changed"

	got, _ := m.Get(ctx, "k")
	got.Count = 99
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "orig", again.Name)
	assert.Zero(t, again.Count)
}

func TestMemory_ConcurrentKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[record]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("v-%d", i%5)
			_ = m.Put(ctx, id, &record{Count: i})
			_, _ = m.Get(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, m.Len())
}
