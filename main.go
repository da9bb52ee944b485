package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/app"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/logger"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, apperr.ErrBrokerUnavailable) {
			slog.Error("lost the message broker, exiting for restart", "error", err)
		} else {
			slog.Error("application failed", "error", err)
		}
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return err
	}

	// 2. Infrastructure
	deps, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Warn("failed to close dependencies", "error", err)
		}
	}()

	// 3. Features and workers
	application, err := app.New(cfg, deps, metrics, log)
	if err != nil {
		return err
	}

	slog.Info("starting",
		"api", cfg.EnableAPI,
		"page_worker", cfg.EnablePageWorker,
		"drawing_worker", cfg.EnableDrawingWorker,
		"sink_mode", cfg.SinkMode,
	)
	return application.Run(ctx)
}
