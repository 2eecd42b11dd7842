package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coherence/internal/app"
	"coherence/internal/config"
	"coherence/internal/logging"
	"coherence/internal/transport/rest"
	"coherence/internal/transport/ws"
)

// @title Coherence Presentation Coach API
// @version 1.0
// @description Upload a presentation recording and get a coherence score with coaching
// @host localhost:8000
// @BasePath /api
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"storage", cfg.Storage.Backend,
		"coaching_model", cfg.AI.Gemini.Models.Coaching,
		"lessons_model", cfg.AI.Gemini.Models.Lessons,
		"filler_model", cfg.AI.Gemini.Models.Fillers,
		"workers", cfg.Processing.WorkerPoolSize,
	)

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Sample cache files may be rewritten by the samples CLI while serving
	go func() {
		if err := a.Samples.Watch(ctx); err != nil {
			logger.Error("sample cache watcher stopped", "error", err)
		}
	}()

	wsHub := ws.NewHub(logger)
	a.Processor.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		VideoService:   a.VideoSvc,
		AuthService:    a.Auth,
		WSHub:          wsHub,
		CORS:           cfg.CORS,
		AuthRequired:   cfg.Auth.Required,
		MaxUploadBytes: cfg.Uploads.MaxBytes(),
		Services:       a.Services(),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "services", a.Services())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = a.Close(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	wsHub.Close()
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
