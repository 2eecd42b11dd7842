package repository

import (
	"os"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coherence/internal/logging"
	"coherence/internal/model"
)

func TestSampleRepo_MissingFile(t *testing.T) {
	repo := NewSampleRepo(t.TempDir(), logging.Discard())
	got, err := repo.Get("sample-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSampleRepo_SaveThenGet(t *testing.T) {
	dir := t.TempDir()
	repo := NewSampleRepo(dir, logging.Discard())
	result := &model.AnalysisResult{VideoID: "sample-1", CoherenceScore: 42, ScoreTier: model.TierNeedsWork}

	require.NoError(t, repo.Save("sample-1", result))
	assert.FileExists(t, repo.Path("sample-1"))

	// A fresh repo reads the file lazily
	fresh := NewSampleRepo(dir, logging.Discard())
	got, err := fresh.Get("sample-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42, got.CoherenceScore)

	files, err := fresh.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "sample-1", files[0].SampleID)
	assert.Positive(t, files[0].Size)
}

func TestSampleRepo_HeldInMemoryUntilInvalidated(t *testing.T) {
	repo := NewSampleRepo(t.TempDir(), logging.Discard())
	require.NoError(t, repo.Save("sample-2", &model.AnalysisResult{VideoID: "sample-2", CoherenceScore: 89}))

	require.NoError(t, os.WriteFile(repo.Path("sample-2"), []byte(`{"videoId":"sample-2","coherenceScore":10}`), 0o644))
	got, err := repo.Get("sample-2")
	require.NoError(t, err)
	assert.Equal(t, 89, got.CoherenceScore)

	repo.handleFSEvent(fsnotify.Event{Name: repo.Path("sample-2"), Op: fsnotify.Write})
	got, err = repo.Get("sample-2")
	require.NoError(t, err)
	assert.Equal(t, 10, got.CoherenceScore)
}

func TestSampleRepo_CorruptFile(t *testing.T) {
	repo := NewSampleRepo(t.TempDir(), logging.Discard())
	require.NoError(t, os.WriteFile(repo.Path("sample-3"), []byte("{not json"), 0o644))
	_, err := repo.Get("sample-3")
	assert.Error(t, err)
}

func TestSampleRepo_Delete(t *testing.T) {
	repo := NewSampleRepo(t.TempDir(), logging.Discard())
	require.NoError(t, repo.Save("sample-1", &model.AnalysisResult{VideoID: "sample-1"}))
	require.NoError(t, repo.Delete("sample-1"))
	require.NoError(t, repo.Delete("sample-1"))

	got, err := repo.Get("sample-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
