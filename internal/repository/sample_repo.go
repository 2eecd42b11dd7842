package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"coherence/internal/model"
)

const sampleFileSuffix = "_result.json"

// SampleFile describes one cache file on disk
type SampleFile struct {
	SampleID string
	Path     string
	Size     int64
	ModTime  time.Time
}

// SampleRepo serves pre-computed results for demo samples from flat JSON
// files named {sampleId}_result.json. Files are read on first use and kept
// in memory until they change on disk.
type SampleRepo struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	results map[string]*model.AnalysisResult
}

func NewSampleRepo(dir string, logger *slog.Logger) *SampleRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleRepo{
		dir:     dir,
		logger:  logger.With("component", "sample_repo"),
		results: make(map[string]*model.AnalysisResult),
	}
}

// Path returns the cache file location for a sample
func (r *SampleRepo) Path(sampleID string) string {
	return filepath.Join(r.dir, sampleID+sampleFileSuffix)
}

// Get returns the cached result, or (nil, nil) if no cache file exists.
func (r *SampleRepo) Get(sampleID string) (*model.AnalysisResult, error) {
	r.mu.RLock()
	cached, ok := r.results[sampleID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(r.Path(sampleID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", sampleID, err)
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode sample %s: %w", sampleID, err)
	}

	r.mu.Lock()
	r.results[sampleID] = &result
	r.mu.Unlock()
	return &result, nil
}

// Save writes the result atomically while holding an exclusive file lock,
// so concurrent CLI runs cannot interleave writes.
func (r *SampleRepo) Save(sampleID string, result *model.AnalysisResult) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", sampleID, err)
	}

	lock := flock.New(r.Path(sampleID) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock sample %s: %w", sampleID, err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := r.Path(sampleID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sample %s: %w", sampleID, err)
	}
	if err := os.Rename(tmp, r.Path(sampleID)); err != nil {
		return fmt.Errorf("commit sample %s: %w", sampleID, err)
	}

	r.mu.Lock()
	r.results[sampleID] = result
	r.mu.Unlock()
	return nil
}

// Delete removes the cache file and forgets the in-memory copy
func (r *SampleRepo) Delete(sampleID string) error {
	r.Invalidate(sampleID)
	err := os.Remove(r.Path(sampleID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove sample %s: %w", sampleID, err)
	}
	_ = os.Remove(r.Path(sampleID) + ".lock")
	return nil
}

// Cached reports whether a cache file exists for the sample
func (r *SampleRepo) Cached(sampleID string) bool {
	_, err := os.Stat(r.Path(sampleID))
	return err == nil
}

// Invalidate drops the in-memory copy so the next Get re-reads the file
func (r *SampleRepo) Invalidate(sampleID string) {
	r.mu.Lock()
	delete(r.results, sampleID)
	r.mu.Unlock()
}

// Files lists the cache files currently on disk
func (r *SampleRepo) Files() ([]SampleFile, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []SampleFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sampleFileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, SampleFile{
			SampleID: strings.TrimSuffix(e.Name(), sampleFileSuffix),
			Path:     filepath.Join(r.dir, e.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return files, nil
}

// Watch invalidates cached samples whenever their file is written, renamed
// or removed. It blocks until ctx is cancelled.
func (r *SampleRepo) Watch(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.handleFSEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("file watcher error", "error", err)
		}
	}
}

func (r *SampleRepo) handleFSEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, sampleFileSuffix) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	sampleID := strings.TrimSuffix(name, sampleFileSuffix)
	r.Invalidate(sampleID)
	r.logger.Debug("sample cache invalidated", "sampleId", sampleID, "op", event.Op.String())
}
