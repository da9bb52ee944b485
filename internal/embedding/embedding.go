// Package embedding holds the vector conventions shared by every embedding
// provider: dimension checks, the reduced prefix slice, and the decorators
// (rate limit, circuit breaker, optional memo) wrapped around a provider.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reduce returns the first ReducedDimension components of full. The result
// shares memory with full but has its capacity capped, so appending to it
// never writes into the full vector.
func Reduce(full []float32) ([]float32, error) {
	if len(full) < config.ReducedDimension {
		return nil, fmt.Errorf("%w: vector has %d components, need at least %d",
			apperr.ErrEmbeddingService, len(full), config.ReducedDimension)
	}
	return full[:config.ReducedDimension:config.ReducedDimension], nil
}

// Check rejects a provider response that does not have exactly dim components.
func Check(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: malformed response: got %d components, want %d",
			apperr.ErrEmbeddingService, len(vec), dim)
	}
	return nil
}

// Finite reports whether every component is a finite number.
func Finite(vec []float32) bool {
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
