package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coherence/internal/cache"
	"coherence/internal/model"
)

type checkpoint struct {
	progress int
	stage    string
	eta      int
}

var (
	stagePreparing   = checkpoint{5, "Preparing video...", 45}
	stageUploading   = checkpoint{10, "Uploading for analysis...", 40}
	stageTranscribe  = checkpoint{30, "Transcribing speech and indexing video...", 35}
	stageBodyLang    = checkpoint{40, "Analyzing body language...", 25}
	stageDissonance  = checkpoint{70, "Detecting dissonance patterns...", 15}
	stageScoring     = checkpoint{80, "Calculating coherence score...", 10}
	stageCoaching    = checkpoint{90, "Generating coaching insights...", 5}
	stageComplete    = checkpoint{100, "Analysis complete!", 0}
	stageFailedLabel = "Processing failed"
)

// progressTracker writes full status records for one run. Progress never
// moves backwards, so late callbacks from a slower source are dropped.
type progressTracker struct {
	mu          sync.Mutex
	videoID     string
	statuses    cache.StatusCache
	broadcaster StatusBroadcaster
	logger      *slog.Logger
	now         func() time.Time
	last        int
	terminal    bool
}

func newProgressTracker(videoID string, statuses cache.StatusCache, b StatusBroadcaster, logger *slog.Logger, now func() time.Time) *progressTracker {
	return &progressTracker{
		videoID:     videoID,
		statuses:    statuses,
		broadcaster: b,
		logger:      logger,
		now:         now,
		last:        -1,
	}
}

func (t *progressTracker) advance(ctx context.Context, cp checkpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal || cp.progress <= t.last {
		return
	}
	t.last = cp.progress

	status := &model.ProcessingStatus{
		VideoID:   t.videoID,
		Status:    model.StatusProcessing,
		Progress:  cp.progress,
		Stage:     cp.stage,
		UpdatedAt: t.now().UTC(),
	}
	if cp.progress >= 100 {
		status.Status = model.StatusComplete
		t.terminal = true
	} else {
		eta := cp.eta
		status.ETASeconds = &eta
	}
	t.write(ctx, status)
}

func (t *progressTracker) fail(ctx context.Context, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return
	}
	t.terminal = true
	t.write(ctx, &model.ProcessingStatus{
		VideoID:   t.videoID,
		Status:    model.StatusError,
		Progress:  0,
		Stage:     stageFailedLabel,
		Error:     &message,
		UpdatedAt: t.now().UTC(),
	})
}

func (t *progressTracker) write(ctx context.Context, status *model.ProcessingStatus) {
	// the run may already be cancelled; the final record must still land
	ctx = context.WithoutCancel(ctx)
	if err := t.statuses.Set(ctx, status); err != nil {
		t.logger.Error("failed to store status", "video", t.videoID, "progress", status.Progress, "error", err)
	}
	if t.broadcaster != nil {
		t.broadcaster.PublishStatus(status)
	}
	t.logger.Debug("status updated", "video", t.videoID, "progress", status.Progress, "stage", status.Stage)
}
