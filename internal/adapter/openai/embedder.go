// Package openai embeds text through any OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

const DefaultModel = "text-embedding-3-large"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	// Text is embedded exactly as chunked.
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		model:    model,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.logger.DebugContext(ctx, "generating embedding", "model", e.model, "length", len(text))

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", apperr.ErrEmbeddingService, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: openai: empty embedding received", apperr.ErrEmbeddingService)
	}
	return vec, nil
}
