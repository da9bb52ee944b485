package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Sink modes select which stores a built record is written to.
const (
	SinkModeBoth  = "both"
	SinkModeIndex = "index"
	SinkModeTable = "table"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	// FullDimension is the component count returned by the embedding service.
	FullDimension = 3072

	// ReducedDimension is the length of the prefix slice stored as the reduced embedding.
	ReducedDimension = 1024
)

type Config struct {
	DBHost    string `envconfig:"DB_HOST" default:"postgres"`
	DBPort    int    `envconfig:"DB_PORT" default:"5432"`
	DBUser    string `envconfig:"DB_USER" default:"preprocess"`
	DBPass    string `envconfig:"DB_PASS" default:"password"`
	DBName    string `envconfig:"DB_NAME" default:"preprocess"`
	DBSSLMode string `envconfig:"DB_SSLMODE" default:"disable"`

	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateAPIKey   string `envconfig:"WEAVIATE_API_KEY"`
	PageClass        string `envconfig:"WEAVIATE_PAGE_CLASS" default:"ManualChunk_20250624"`
	DrawingClass     string `envconfig:"WEAVIATE_DRAWING_CLASS" default:"DrawingRecord_20250625"`
	TextTokenization string `envconfig:"WEAVIATE_TEXT_TOKENIZATION" default:"word"`

	NSQDHost           string        `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP           string        `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQLookupd         string        `envconfig:"NSQ_LOOKUPD_HTTP"`
	NSQChannel         string        `envconfig:"NSQ_CHANNEL" default:"indexer"`
	NSQMaxAttempts     uint16        `envconfig:"NSQ_MAX_ATTEMPTS" default:"0"`
	NSQMsgTimeout      time.Duration `envconfig:"NSQ_MSG_TIMEOUT" default:"10m"`
	NSQDisconnectGrace time.Duration `envconfig:"NSQ_DISCONNECT_GRACE" default:"30s"`

	EmbeddingProvider  string        `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingBaseURL   string        `envconfig:"EMBEDDING_BASE_URL"`
	OpenAIAPIKey       string        `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey       string        `envconfig:"GEMINI_API_KEY"`
	EmbeddingDimension int           `envconfig:"EMBEDDING_DIMENSION" default:"3072"`
	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	EmbeddingRPS       float64       `envconfig:"EMBEDDING_RPS" default:"50"`
	EmbeddingBurst     int           `envconfig:"EMBEDDING_BURST" default:"10"`
	EmbeddingCacheDir  string        `envconfig:"EMBEDDING_CACHE_DIR"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`

	SinkMode string `envconfig:"SINK_MODE" default:"both"`

	EnableAPI           bool `envconfig:"ENABLE_API" default:"true"`
	EnablePageWorker    bool `envconfig:"ENABLE_PAGE_WORKER" default:"true"`
	EnableDrawingWorker bool `envconfig:"ENABLE_DRAWING_WORKER" default:"false"`

	// Server
	ServerPort int    `envconfig:"SERVER_PORT" default:"8081"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// Object storage (optional)
	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `envconfig:"S3_PUBLIC_BASE_URL"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.SinkMode {
	case SinkModeBoth, SinkModeIndex, SinkModeTable:
	default:
		return fmt.Errorf("%w: SINK_MODE=%q", ErrInvalidValue, c.SinkMode)
	}
	if c.WritesIndex() && c.WeaviateHost == "" {
		return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}

	if c.EmbeddingDimension < ReducedDimension {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be at least %d", ErrInvalidValue, ReducedDimension)
	}

	if c.EnablePageWorker || c.EnableDrawingWorker {
		switch c.EmbeddingProvider {
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
			}
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
			}
		default:
			return fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", ErrInvalidValue, c.EmbeddingProvider)
		}
	}

	return nil
}

// WritesIndex reports whether records go to the search index.
func (c *Config) WritesIndex() bool {
	return c.SinkMode == SinkModeBoth || c.SinkMode == SinkModeIndex
}

// WritesTable reports whether records go to the relational table.
func (c *Config) WritesTable() bool {
	return c.SinkMode == SinkModeBoth || c.SinkMode == SinkModeTable
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode)
}

// ResolvedEmbeddingModel falls back to the provider's 3072-dimension model.
func (c *Config) ResolvedEmbeddingModel() string {
	if c.EmbeddingModel != "" {
		return c.EmbeddingModel
	}
	if c.EmbeddingProvider == ProviderGemini {
		return "gemini-embedding-001"
	}
	return "text-embedding-3-large"
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
