package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/gemini"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/nsq"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/openai"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/postgres"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/s3"
	wstore "github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/weaviate"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/embedding"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

// SchemaEnsurer is anything that can idempotently provision its schema.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

type Dependencies struct {
	DB        *sql.DB
	Weaviate  *weaviate.Client
	Index     *wstore.Store
	Table     *postgres.Sink
	Publisher *nsq.Publisher
	Admin     *nsq.Admin
	Embedder  worker.Embedder
	Uploader  *s3.Uploader

	closers []func() error
}

// Close releases every connection opened by Bootstrap, in reverse order.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		if cerr := deps.Close(); cerr != nil {
			slog.Warn("cleanup after failed bootstrap", "error", cerr)
		}
		return nil, err
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Database
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, db.Close)

	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("failed to ping db: %w", err))
	}

	// The failed-job table lives in the same migration set as the relational
	// sink, so it is applied whatever the sink mode.
	if err := postgres.Migrate(ctx, db); err != nil {
		return fail(err)
	}
	slog.Info("migrations applied successfully")

	if cfg.WritesTable() {
		deps.Table = postgres.NewSink(db)
	}

	// Weaviate
	if cfg.WritesIndex() {
		wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
		if cfg.WeaviateAPIKey != "" {
			wCfg.AuthConfig = auth.ApiKey{Value: cfg.WeaviateAPIKey}
		}
		wClient, err := weaviate.NewClient(wCfg)
		if err != nil {
			return fail(fmt.Errorf("weaviate client error: %w", err))
		}
		deps.Weaviate = wClient
		deps.Index = wstore.NewStore(wClient, wstore.Config{
			PageClass:    cfg.PageClass,
			DrawingClass: cfg.DrawingClass,
			Tokenization: cfg.TextTokenization,
		})

		if err := EnsureSchemaWithRetry(ctx, deps.Index, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return fail(fmt.Errorf("weaviate schema error: %w", err))
		}
	}

	// NSQ
	pub, err := nsq.NewPublisher(cfg.NSQDHost, logger, cfg.SlogLevel())
	if err != nil {
		return fail(fmt.Errorf("nsq producer error: %w", err))
	}
	deps.Publisher = pub
	deps.closers = append(deps.closers, func() error { pub.Stop(); return nil })

	deps.Admin = nsq.NewAdmin(cfg.NSQDHTTP)
	if err := createQueues(ctx, deps.Admin, cfg, retryDelay); err != nil {
		return fail(err)
	}

	// Embedding provider, only needed by the workers.
	if cfg.EnablePageWorker || cfg.EnableDrawingWorker {
		emb, err := newEmbedder(ctx, cfg, deps)
		if err != nil {
			return fail(err)
		}
		deps.Embedder = emb
	}

	// Object storage
	if cfg.S3Bucket != "" {
		up, err := s3.NewUploader(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return fail(err)
		}
		deps.Uploader = up
	}

	return deps, nil
}

// newEmbedder builds provider -> guard -> optional on-disk cache.
func newEmbedder(ctx context.Context, cfg *config.Config, deps *Dependencies) (worker.Embedder, error) {
	model := cfg.ResolvedEmbeddingModel()

	var provider embedding.Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		g, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		deps.closers = append(deps.closers, g.Close)
		provider = g
	default:
		o, err := openai.NewEmbedder(openai.Config{
			BaseURL: cfg.EmbeddingBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   model,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		provider = o
	}

	var emb embedding.Embedder = embedding.NewGuard(provider, embedding.GuardConfig{
		Name:      cfg.EmbeddingProvider,
		Dimension: cfg.EmbeddingDimension,
		Timeout:   cfg.EmbeddingTimeout,
		RPS:       cfg.EmbeddingRPS,
		Burst:     cfg.EmbeddingBurst,
	})

	if cfg.EmbeddingCacheDir != "" {
		cache, err := embedding.OpenCache(cfg.EmbeddingCacheDir, model, emb)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, cache.Close)
		emb = cache
	}

	slog.Info("embedder ready", "provider", cfg.EmbeddingProvider, "model", model, "cache", cfg.EmbeddingCacheDir != "")
	return emb, nil
}

// createQueues declares every topic with the worker channel so messages
// published before the first consumer connects are retained.
func createQueues(ctx context.Context, admin *nsq.Admin, cfg *config.Config, delay time.Duration) error {
	var err error
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err = ensureTopics(ctx, admin, cfg.NSQChannel); err == nil {
			return nil
		}
		slog.Warn("failed to declare nsq topics, retrying...", "attempt", i+1, "error", err)
		time.Sleep(delay)
	}
	if err == nil {
		err = ensureTopics(ctx, admin, cfg.NSQChannel)
	}
	return err
}

func ensureTopics(ctx context.Context, admin *nsq.Admin, channel string) error {
	for _, topic := range config.Topics {
		if err := admin.EnsureQueue(ctx, topic, channel); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSchemaWithRetry delegates schema check to a helper with retry logic.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
