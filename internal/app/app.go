package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/document"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/job"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/stats"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/nsq"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/middleware"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/sink"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/text"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

type App struct {
	Handler   http.Handler
	Consumers []*nsq.Consumer
	port      int
	enableAPI bool
}

// New wires features and workers onto bootstrapped dependencies.
func New(cfg *config.Config, deps *Dependencies, metrics *telemetry.Metrics, logger *slog.Logger) (*App, error) {
	// Feature: Job
	jobRepo := job.NewPostgresRepo(deps.DB)
	jobService := job.NewService(jobRepo, deps.Publisher, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Document
	var uploader document.Uploader
	if deps.Uploader != nil {
		uploader = deps.Uploader
	}
	documentHandler := document.NewHandler(document.NewService(deps.Publisher, uploader, metrics))

	// Sinks. Typed nil pointers must not leak into the interfaces.
	var (
		index        sink.Index
		table        sink.Table
		indexCounter stats.IndexCounter
		tableCounter stats.TableCounter
	)
	if deps.Index != nil {
		index, indexCounter = deps.Index, deps.Index
	}
	if deps.Table != nil {
		table, tableCounter = deps.Table, deps.Table
	}

	// Feature: Stats
	statsHandler := stats.NewHandler(jobRepo, indexCounter, tableCounter)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/pdf/process", middleware.CorrelationID(enableCORS(documentHandler.ProcessPDF)))
	mux.Handle("POST /api/v1/pages", middleware.CorrelationID(enableCORS(documentHandler.PublishPage)))
	mux.Handle("POST /api/v1/drawings", middleware.CorrelationID(enableCORS(documentHandler.PublishDrawing)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("GET /jobs/failed/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))
	mux.Handle("POST /jobs/failed/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))
	mux.Handle("DELETE /jobs/failed/{id}", middleware.CorrelationID(enableCORS(jobHandler.Delete)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", healthHandler(deps))

	a := &App{Handler: mux, port: cfg.ServerPort, enableAPI: cfg.EnableAPI}

	// Workers
	if cfg.EnablePageWorker || cfg.EnableDrawingWorker {
		if deps.Embedder == nil {
			return nil, errors.New("workers enabled without an embedder")
		}
		builder := worker.NewBuilder(deps.Embedder, text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
		writer := sink.New(index, table, metrics)

		if cfg.EnablePageWorker {
			c, err := newConsumer(cfg, logger, config.TopicPageMetadata, worker.NewPageConsumer(builder, writer, jobRepo, metrics))
			if err != nil {
				return nil, err
			}
			a.Consumers = append(a.Consumers, c)
		}
		if cfg.EnableDrawingWorker {
			c, err := newConsumer(cfg, logger, config.TopicDrawingMetadata, worker.NewDrawingConsumer(builder, writer, jobRepo, metrics))
			if err != nil {
				return nil, err
			}
			a.Consumers = append(a.Consumers, c)
		}
	}

	return a, nil
}

func newConsumer(cfg *config.Config, logger *slog.Logger, topic string, h nsq.Handler) (*nsq.Consumer, error) {
	c, err := nsq.NewConsumer(nsq.ConsumerConfig{
		Topic:           topic,
		Channel:         cfg.NSQChannel,
		NSQDAddr:        nsqdAddr(cfg),
		LookupdAddr:     cfg.NSQLookupd,
		MaxAttempts:     cfg.NSQMaxAttempts,
		MsgTimeout:      cfg.NSQMsgTimeout,
		DisconnectGrace: cfg.NSQDisconnectGrace,
		Logger:          logger,
		LogLevel:        cfg.SlogLevel(),
	}, h)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer for %s: %w", topic, err)
	}
	return c, nil
}

// nsqdAddr prefers lookupd discovery when it is configured.
func nsqdAddr(cfg *config.Config) string {
	if cfg.NSQLookupd != "" {
		return ""
	}
	return cfg.NSQDHost
}

// Run serves HTTP and runs every consumer until ctx is cancelled or one of
// them fails. A consumer that loses its broker returns ErrBrokerUnavailable,
// which stops the whole process.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.enableAPI {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.port),
			Handler:           a.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			<-gctx.Done()
			slog.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			slog.Info("server starting", "port", a.port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	for _, c := range a.Consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}

	return g.Wait()
}

func healthHandler(deps *Dependencies) http.HandlerFunc {
	checks := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error { return deps.DB.PingContext(ctx) },
	}
	if deps.Index != nil {
		checks["weaviate"] = deps.Index.Ping
	}
	if deps.Admin != nil {
		checks["nsqd"] = deps.Admin.Ping
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]interface{}{"status": "ok"}
		components := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(ctx, "health check failed", "component", name, "error", err)
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		body["components"] = components

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	}
}
