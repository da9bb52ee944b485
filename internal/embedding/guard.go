package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

type GuardConfig struct {
	Name      string
	Dimension int
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

// Guard bounds every provider call with a timeout, a token-bucket rate limit
// and a circuit breaker, and validates the returned dimension. All failures
// surface as apperr.ErrEmbeddingService.
type Guard struct {
	next      Embedder
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	timeout   time.Duration
	dimension int
}

func NewGuard(next Embedder, cfg GuardConfig) *Guard {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("embedding circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guard{
		next:      next,
		breaker:   breaker,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   timeout,
		dimension: cfg.Dimension,
	}
}

func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", apperr.ErrEmbeddingService, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Embed(callCtx, text)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrEmbeddingService) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingService, err)
	}

	vec, _ := res.([]float32)
	if g.dimension > 0 {
		if err := Check(vec, g.dimension); err != nil {
			return nil, err
		}
	}
	return vec, nil
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
