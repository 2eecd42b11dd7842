package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/model"
)

func TestMemoryStatusCache_ReplacesRecord(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStatusCache()

	eta := 30
	require.NoError(t, c.Set(ctx, &model.ProcessingStatus{VideoID: "v", Status: model.StatusProcessing, Progress: 40, ETASeconds: &eta}))
	require.NoError(t, c.Set(ctx, &model.ProcessingStatus{VideoID: "v", Status: model.StatusComplete, Progress: 100}))

	got, err := c.Get(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Nil(t, got.ETASeconds)
}

func TestMemoryPayloadCache_RerunClearsMissingSide(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryPayloadCache()

	require.NoError(t, c.Set(ctx, "v", Payloads{
		Speech: &model.SpeechAnalysis{PaceWPM: 150},
		Visual: &model.VisualAnalysis{Strengths: []string{"calm"}},
	}))
	require.NoError(t, c.Set(ctx, "v", Payloads{Speech: &model.SpeechAnalysis{PaceWPM: 120}}))

	got, err := c.Get(ctx, "v")
	require.NoError(t, err)
	require.NotNil(t, got.Speech)
	assert.Equal(t, 120, got.Speech.PaceWPM)
	assert.Nil(t, got.Visual)

	require.NoError(t, c.Delete(ctx, "v"))
	got, err = c.Get(ctx, "v")
	require.NoError(t, err)
	assert.Nil(t, got.Speech)
}

func TestRedisStoreKey(t *testing.T) {
	s := newRedisStore[model.ProcessingStatus](nil, "status", 0)
	assert.Equal(t, "video:abc:status", s.key("abc"))
}
