package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"coherence/internal/analysis"
	"coherence/internal/cache"
	"coherence/internal/model"
	"coherence/internal/repository"
)

// VisualAnalyzer is the body-language analysis service. Analyze never
// fails; it returns a fallback payload instead.
type VisualAnalyzer interface {
	CreateOrGetIndex(ctx context.Context, name string) (string, error)
	UploadAndIndex(ctx context.Context, indexID, path string, onStatus func(string)) (string, error)
	Analyze(ctx context.Context, externalID string) *model.VisualAnalysis
}

// SpeechTranscriber is the speech transcription service
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, path string) (*model.SpeechAnalysis, error)
}

// CoachingGenerator writes the optional coaching report
type CoachingGenerator interface {
	Generate(ctx context.Context, result *model.AnalysisResult, payloads cache.Payloads) (*model.CoachingReport, error)
}

type ProcessorConfig struct {
	IndexName string
	// RunTimeout bounds one detached run; zero means no limit
	RunTimeout time.Duration
}

// Processor runs the analysis pipeline for uploaded videos
type Processor struct {
	videos   repository.VideoRepo
	results  repository.ResultRepo
	statuses cache.StatusCache
	payloads cache.PayloadCache
	pool     *WorkerPool
	cfg      ProcessorConfig
	logger   *slog.Logger
	now      func() time.Time

	visual      VisualAnalyzer
	speech      SpeechTranscriber
	coach       CoachingGenerator
	broadcaster StatusBroadcaster

	indexMu sync.Mutex
	indexID string

	active  sync.Map
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewProcessor(
	videos repository.VideoRepo,
	results repository.ResultRepo,
	statuses cache.StatusCache,
	payloads cache.PayloadCache,
	pool *WorkerPool,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if pool == nil {
		pool = NewWorkerPool(3)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		videos:   videos,
		results:  results,
		statuses: statuses,
		payloads: payloads,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.With("component", "processor"),
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

func (p *Processor) SetVisualAnalyzer(v VisualAnalyzer)       { p.visual = v }
func (p *Processor) SetSpeechTranscriber(s SpeechTranscriber) { p.speech = s }
func (p *Processor) SetCoach(c CoachingGenerator)             { p.coach = c }

// SetBroadcaster sets the broadcaster for status push (avoids import cycle)
func (p *Processor) SetBroadcaster(b StatusBroadcaster) { p.broadcaster = b }

// Start launches a detached run for videoID. Only one run per id may be
// active at a time.
func (p *Processor) Start(videoID string) error {
	if p.baseCtx.Err() != nil {
		return fmt.Errorf("processor stopped: %w", ErrUnavailable)
	}
	if _, loaded := p.active.LoadOrStore(videoID, struct{}{}); loaded {
		return ErrAlreadyProcessing
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Delete(videoID)

		ctx := p.baseCtx
		if p.cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
			defer cancel()
		}
		if _, err := p.Run(ctx, videoID); err != nil {
			p.logger.Error("processing failed", "video", videoID, "error", err)
		}
	}()
	return nil
}

// IsActive reports whether a run for videoID is in flight
func (p *Processor) IsActive(videoID string) bool {
	_, ok := p.active.Load(videoID)
	return ok
}

// Shutdown cancels in-flight runs and waits for them to record their
// final status.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the pipeline synchronously. Any error or panic leaves the
// status in the error state with the message preserved.
func (p *Processor) Run(ctx context.Context, videoID string) (result *model.AnalysisResult, err error) {
	tracker := newProgressTracker(videoID, p.statuses, p.broadcaster, p.logger, p.now)
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic during processing: %v", r)
			tracker.fail(ctx, err.Error())
		}
	}()

	start := p.now()
	result, err = p.run(ctx, videoID, tracker)
	if err != nil {
		tracker.fail(ctx, err.Error())
		return nil, err
	}
	p.logger.Info("processing complete",
		"video", videoID,
		"score", result.CoherenceScore,
		"sources", result.Sources,
		"degraded", result.Degraded,
		"elapsed", p.now().Sub(start).Round(time.Millisecond))
	return result, nil
}

func (p *Processor) run(ctx context.Context, videoID string, tracker *progressTracker) (*model.AnalysisResult, error) {
	tracker.advance(ctx, stagePreparing)
	video, err := p.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if video == nil {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	tracker.advance(ctx, stageUploading)
	var (
		speech *model.SpeechAnalysis
		visual *model.VisualAnalysis
		g      errgroup.Group
	)
	tracker.advance(ctx, stageTranscribe)
	if p.visual != nil {
		g.Go(func() error {
			visual = p.runVisual(ctx, video, tracker)
			return nil
		})
	}
	if p.speech != nil {
		g.Go(func() error {
			speech = p.runSpeech(ctx, video)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing interrupted: %w", err)
	}
	tracker.advance(ctx, stageBodyLang)

	if err := p.payloads.Set(ctx, videoID, cache.Payloads{Speech: speech, Visual: visual}); err != nil {
		p.logger.Warn("failed to cache payloads", "video", videoID, "error", err)
	}

	tracker.advance(ctx, stageDissonance)
	result := analysis.Assemble(analysis.AssembleInput{
		VideoID: videoID,
		Speech:  speech,
		Visual:  visual,
		Now:     p.now().UTC(),
	})
	if result.DurationSeconds > 0 && video.DurationSeconds == 0 {
		video.DurationSeconds = result.DurationSeconds
		if err := p.videos.Save(ctx, video); err != nil {
			p.logger.Warn("failed to record duration", "video", videoID, "error", err)
		}
	}
	tracker.advance(ctx, stageScoring)

	if p.coach != nil {
		tracker.advance(ctx, stageCoaching)
		if report := p.generateCoaching(ctx, result, cache.Payloads{Speech: speech, Visual: visual}); report != nil {
			result = result.WithCoachingReport(report)
		}
	}

	if err := p.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	tracker.advance(ctx, stageComplete)
	return result, nil
}

func (p *Processor) runVisual(ctx context.Context, video *model.Video, tracker *progressTracker) (out *model.VisualAnalysis) {
	defer p.recoverSource("visual", video.ID, func() { out = nil })

	indexID, err := p.index(ctx)
	if err != nil {
		p.logger.Warn("visual index unavailable", "video", video.ID, "error", err)
		return nil
	}

	var externalID string
	err = p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		externalID, err = p.visual.UploadAndIndex(ctx, indexID, video.Path, func(status string) {
			if status == StatusValidating || status == "indexing" {
				tracker.advance(ctx, stageBodyLang)
			}
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrIndexTimeout) {
			p.logger.Warn("visual indexing timed out", "video", video.ID, "error", err)
		} else {
			p.logger.Warn("visual upload failed", "video", video.ID, "error", err)
		}
		return nil
	}

	tracker.advance(ctx, stageBodyLang)
	err = p.pool.Do(ctx, func(ctx context.Context) error {
		out = p.visual.Analyze(ctx, externalID)
		return nil
	})
	if err != nil {
		return nil
	}
	return out
}

func (p *Processor) runSpeech(ctx context.Context, video *model.Video) (out *model.SpeechAnalysis) {
	defer p.recoverSource("speech", video.ID, func() { out = nil })

	err := p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.speech.Transcribe(ctx, video.Path)
		return err
	})
	if err != nil {
		p.logger.Warn("transcription failed", "video", video.ID, "error", err)
		return nil
	}
	return out
}

// index returns the cached index id, creating the index on first use
func (p *Processor) index(ctx context.Context) (string, error) {
	p.indexMu.Lock()
	defer p.indexMu.Unlock()
	if p.indexID != "" {
		return p.indexID, nil
	}
	var id string
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = p.visual.CreateOrGetIndex(ctx, p.cfg.IndexName)
		return err
	})
	if err != nil {
		return "", err
	}
	p.indexID = id
	return id, nil
}

func (p *Processor) generateCoaching(ctx context.Context, result *model.AnalysisResult, payloads cache.Payloads) (report *model.CoachingReport) {
	defer p.recoverSource("coaching", result.VideoID, func() { report = nil })

	report, err := p.coach.Generate(ctx, result, payloads)
	if err != nil {
		p.logger.Warn("coaching report skipped", "video", result.VideoID, "error", err)
		return nil
	}
	return report
}

// recoverSource turns a panic in one source into a missing payload
func (p *Processor) recoverSource(source, videoID string, reset func()) {
	if r := recover(); r != nil {
		p.logger.Error("source panicked", "source", source, "video", videoID, "panic", r)
		reset()
	}
}
