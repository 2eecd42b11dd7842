// Package app assembles storage, upstream clients and services from
// configuration. It is shared by the server and the samples CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coherence/internal/cache"
	"coherence/internal/config"
	"coherence/internal/repository"
	"coherence/internal/service"
)

const connectTimeout = 5 * time.Second

// App holds the wired dependencies of one process
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Videos   repository.VideoRepo
	Results  repository.ResultRepo
	Statuses cache.StatusCache
	Payloads cache.PayloadCache
	Samples  *repository.SampleRepo

	Gemini    *service.GeminiClient
	Visual    *service.VisualClient
	Speech    *service.SpeechClient
	Coaching  *service.CoachingService
	Processor *service.Processor
	VideoSvc  *service.VideoService
	Auth      *service.AuthService

	closers []func(context.Context) error
}

// New connects the configured storage backend and builds every service.
// Upstream clients whose API key is missing are left nil; the processor
// treats those sources as unavailable.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.initStorage(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.Samples = repository.NewSampleRepo(cfg.Samples.CacheDir, logger)
	a.initServices()
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config.Storage
	switch cfg.Backend {
	case config.BackendMemory:
		a.Videos = repository.NewMemoryVideoRepo()
		a.Results = repository.NewMemoryResultRepo()
		a.Statuses = cache.NewMemoryStatusCache()
		a.Payloads = cache.NewMemoryPayloadCache()
		return nil

	case config.BackendRedis:
		rdb, err := a.connectRedis(ctx)
		if err != nil {
			return err
		}
		a.Videos = repository.NewMemoryVideoRepo()
		a.Results = repository.NewMemoryResultRepo()
		a.Statuses = cache.NewStatusCache(rdb, cfg.TTL)
		a.Payloads = cache.NewPayloadCache(rdb, cfg.TTL)
		return nil

	case config.BackendMongo:
		db, err := a.connectMongo(ctx)
		if err != nil {
			return err
		}
		rdb, err := a.connectRedis(ctx)
		if err != nil {
			return err
		}
		a.Videos = repository.NewVideoRepo(db)
		a.Results = repository.NewResultRepo(db)
		a.Statuses = cache.NewStatusCache(rdb, cfg.TTL)
		a.Payloads = cache.NewPayloadCache(rdb, cfg.TTL)
		return nil
	}
	return fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
}

func (a *App) connectRedis(ctx context.Context) (*redis.Client, error) {
	cfg := a.Config.Storage
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	a.Logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return rdb, nil
}

func (a *App) connectMongo(ctx context.Context) (*mongo.Database, error) {
	cfg := a.Config.Storage
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	a.Logger.Info("connected to mongo", "database", cfg.MongoDatabase)
	return client.Database(cfg.MongoDatabase), nil
}

func (a *App) initServices() {
	cfg := a.Config
	logger := a.Logger

	a.Gemini = service.NewGeminiClient(&cfg.AI.Gemini)
	a.Auth = service.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.Audience)

	a.Processor = service.NewProcessor(a.Videos, a.Results, a.Statuses, a.Payloads,
		service.NewWorkerPool(cfg.Processing.WorkerPoolSize),
		service.ProcessorConfig{IndexName: cfg.AI.TwelveLabs.IndexName, RunTimeout: cfg.Processing.RunTimeout},
		logger)

	if cfg.AI.TwelveLabs.IsEnabled() {
		a.Visual = service.NewVisualClient(&cfg.AI.TwelveLabs, cfg.Processing.IndexTimeout, logger)
		a.Processor.SetVisualAnalyzer(a.Visual)
	} else {
		logger.Warn("visual analysis disabled", "reason", "TWELVELABS_API_KEY not set")
	}

	if cfg.AI.Deepgram.IsEnabled() {
		var judge service.ContextualJudge
		if a.Gemini.Available() {
			judge = service.NewGeminiFillerJudge(a.Gemini)
		}
		a.Speech = service.NewSpeechClient(&cfg.AI.Deepgram, service.NewFillerClassifier(judge, logger), logger)
		a.Processor.SetSpeechTranscriber(a.Speech)
	} else {
		logger.Warn("speech analysis disabled", "reason", "DEEPGRAM_API_KEY not set")
	}

	a.Coaching = service.NewCoachingService(a.Gemini, a.Results, a.Payloads, logger)
	if a.Coaching.Available() {
		a.Processor.SetCoach(a.Coaching)
	} else {
		logger.Warn("coaching disabled", "reason", "GEMINI_API_KEY not set")
	}

	a.VideoSvc = service.NewVideoService(a.Videos, a.Results, a.Statuses, a.Payloads, a.Samples, a.Processor,
		service.VideoServiceConfig{UploadDir: cfg.Uploads.Dir, MaxUploadBytes: cfg.Uploads.MaxBytes()},
		logger)
	a.VideoSvc.SetCoachingService(a.Coaching)
}

// Services reports which upstream integrations are configured
func (a *App) Services() map[string]bool {
	return map[string]bool{
		"twelvelabs": a.Config.AI.TwelveLabs.IsEnabled(),
		"deepgram":   a.Config.AI.Deepgram.IsEnabled(),
		"gemini":     a.Config.AI.Gemini.IsEnabled(),
	}
}

// Close stops in-flight runs and releases storage connections
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Processor != nil {
		if err := a.Processor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("processor shutdown: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
