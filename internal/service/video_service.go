package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"coherence/internal/analysis"
	"coherence/internal/cache"
	"coherence/internal/model"
	"coherence/internal/repository"
)

// EstimatedProcessingSeconds is the ETA reported on upload
const EstimatedProcessingSeconds = 45

// allowedVideoTypes maps accepted content types to the stored extension
var allowedVideoTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/x-m4v":     ".m4v",
}

var sampleVideoExts = []string{".mp4", ".mov", ".webm"}

// UploadInput is one uploaded recording
type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	// Size is the declared size; -1 when unknown
	Size    int64
	OwnerID string
}

type VideoServiceConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

// VideoService handles uploads, status and result lookups
type VideoService struct {
	videos    repository.VideoRepo
	results   repository.ResultRepo
	statuses  cache.StatusCache
	payloads  cache.PayloadCache
	samples   *repository.SampleRepo
	processor *Processor
	coaching  *CoachingService
	cfg       VideoServiceConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewVideoService(
	videos repository.VideoRepo,
	results repository.ResultRepo,
	statuses cache.StatusCache,
	payloads cache.PayloadCache,
	samples *repository.SampleRepo,
	processor *Processor,
	cfg VideoServiceConfig,
	logger *slog.Logger,
) *VideoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoService{
		videos:    videos,
		results:   results,
		statuses:  statuses,
		payloads:  payloads,
		samples:   samples,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With("component", "videos"),
		now:       time.Now,
	}
}

// SetCoachingService enables coaching regeneration
func (s *VideoService) SetCoachingService(c *CoachingService) { s.coaching = c }

// Submit stores the upload, records it as queued and starts processing
func (s *VideoService) Submit(ctx context.Context, in UploadInput) (*model.UploadResponse, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	ext, ok := allowedVideoTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, in.ContentType)
	}
	if s.cfg.MaxUploadBytes > 0 && in.Size > s.cfg.MaxUploadBytes {
		return nil, ErrVideoTooLarge
	}

	videoID := uuid.New().String()
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, videoID+ext)
	written, err := s.writeUpload(path, in.Reader)
	if err != nil {
		return nil, err
	}

	video := &model.Video{
		ID:          videoID,
		Filename:    filepath.Base(in.Filename),
		ContentType: contentType,
		SizeBytes:   written,
		Path:        path,
		OwnerID:     in.OwnerID,
		UploadedAt:  s.now().UTC(),
	}
	if err := s.videos.Save(ctx, video); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("save video: %w", err)
	}

	eta := EstimatedProcessingSeconds
	queued := &model.ProcessingStatus{
		VideoID:    videoID,
		Status:     model.StatusQueued,
		Progress:   0,
		Stage:      "Queued for processing...",
		ETASeconds: &eta,
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.statuses.Set(ctx, queued); err != nil {
		s.discardUpload(ctx, video)
		return nil, fmt.Errorf("set status: %w", err)
	}
	if err := s.processor.Start(videoID); err != nil {
		s.discardUpload(ctx, video)
		return nil, err
	}

	s.logger.Info("video uploaded", "video", videoID, "bytes", written, "contentType", contentType)
	return &model.UploadResponse{
		VideoID:       videoID,
		Status:        string(model.StatusProcessing),
		EstimatedTime: EstimatedProcessingSeconds,
	}, nil
}

// discardUpload rolls back an upload that was stored but never started
func (s *VideoService) discardUpload(ctx context.Context, video *model.Video) {
	err := errors.Join(
		s.statuses.Delete(ctx, video.ID),
		s.videos.Delete(ctx, video.ID),
		removeIfExists(video.Path),
	)
	if err != nil {
		s.logger.Warn("failed to roll back upload", "video", video.ID, "error", err)
	}
}

func (s *VideoService) writeUpload(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w", err)
	}
	src := r
	if s.cfg.MaxUploadBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxUploadBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.cfg.MaxUploadBytes > 0 && written > s.cfg.MaxUploadBytes {
		err = ErrVideoTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrVideoTooLarge) {
			return 0, err
		}
		return 0, fmt.Errorf("write upload: %w", err)
	}
	return written, nil
}

// Status returns the current processing status. Samples are always
// complete.
func (s *VideoService) Status(ctx context.Context, videoID string) (*model.ProcessingStatus, error) {
	if IsSample(videoID) {
		return &model.ProcessingStatus{
			VideoID:   videoID,
			Status:    model.StatusComplete,
			Progress:  100,
			Stage:     stageComplete.stage,
			UpdatedAt: s.now().UTC(),
		}, nil
	}
	status, err := s.statuses.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrNotFound
	}
	return status, nil
}

// Result returns the finished analysis, ErrProcessingNotComplete while the
// run is still going, or ErrNotFound.
func (s *VideoService) Result(ctx context.Context, videoID string) (*model.AnalysisResult, error) {
	if IsSample(videoID) {
		return s.SampleResult(videoID)
	}

	status, err := s.statuses.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if status != nil && status.Status != model.StatusComplete {
		return nil, ErrProcessingNotComplete
	}
	result, err := s.results.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNotFound
	}
	return result, nil
}

// Samples lists the demo samples with their cache state
func (s *VideoService) Samples() []model.Sample {
	out := Samples()
	for i := range out {
		out[i].Cached = s.samples.Cached(out[i].ID)
	}
	return out
}

// SampleResult serves the cached result for a sample, or a generated
// demonstration result when no cache file exists.
func (s *VideoService) SampleResult(sampleID string) (*model.AnalysisResult, error) {
	sample, ok := LookupSample(sampleID)
	if !ok || sample.ID != sampleID {
		return nil, ErrNotFound
	}
	cached, err := s.samples.Get(sampleID)
	if err != nil {
		s.logger.Warn("sample cache unreadable, serving generated result", "sample", sampleID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}
	return analysis.SampleResult(sample, s.now().UTC()), nil
}

// VideoPath returns the stored file for an upload or a bundled sample
func (s *VideoService) VideoPath(ctx context.Context, videoID string) (string, error) {
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video != nil {
		if _, err := os.Stat(video.Path); err == nil {
			return video.Path, nil
		}
	}
	if IsSample(videoID) {
		for _, ext := range sampleVideoExts {
			p := filepath.Join(s.cfg.UploadDir, videoID+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", ErrNotFound
}

// RegenerateCoaching rebuilds the coaching report of a finished upload
func (s *VideoService) RegenerateCoaching(ctx context.Context, videoID string) (*model.AnalysisResult, error) {
	if s.coaching == nil || !s.coaching.Available() {
		return nil, fmt.Errorf("coaching: %w", ErrUnavailable)
	}
	if IsSample(videoID) {
		return nil, ErrNotFound
	}
	if s.processor.IsActive(videoID) {
		return nil, ErrProcessingNotComplete
	}
	return s.coaching.Regenerate(ctx, videoID)
}

// Delete removes an upload and everything derived from it
func (s *VideoService) Delete(ctx context.Context, videoID string) error {
	if IsSample(videoID) {
		return ErrNotFound
	}
	if s.processor.IsActive(videoID) {
		return ErrAlreadyProcessing
	}
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return ErrNotFound
	}

	err = errors.Join(
		removeIfExists(video.Path),
		s.videos.Delete(ctx, videoID),
		s.statuses.Delete(ctx, videoID),
		s.results.Delete(ctx, videoID),
		s.payloads.Delete(ctx, videoID),
	)
	if err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}
	s.logger.Info("video deleted", "video", videoID)
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
