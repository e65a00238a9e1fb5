// Package embedding holds decorators around the embedding capability.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Retry defaults.
const (
	DefaultAttemptTimeout = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 500 * time.Millisecond
)

// RetryConfig tunes the resilient decorator. Zero values select the defaults.
type RetryConfig struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	Backoff        time.Duration
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// ResilientEmbedder retries transient provider failures with exponential backoff
// and spaces calls with a client-side rate limiter.
type ResilientEmbedder struct {
	inner   domain.Embedder
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewResilientEmbedder wraps inner.
func NewResilientEmbedder(inner domain.Embedder, cfg RetryConfig, logger *zap.Logger) *ResilientEmbedder {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	r := &ResilientEmbedder{inner: inner, cfg: cfg, logger: logger, sleep: sleepCtx}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r
}

// Embed calls the inner embedder up to MaxAttempts times.
// Cancellation of ctx is never retried.
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.EmbeddingRetriesTotal.Inc()
			delay := r.cfg.Backoff << (attempt - 2)
			if err := r.sleep(ctx, delay); err != nil {
				return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return domain.EmbeddingResult{}, fmt.Errorf("%w: rate limiter: %w", domain.ErrEmbedding, err)
			}
		}

		res, err := r.attempt(ctx, text)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, domain.ErrVectorDimMismatch) {
			break
		}
		r.logger.Warn("embedding attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Error(err),
		)
	}

	if !errors.Is(lastErr, domain.ErrEmbedding) {
		lastErr = fmt.Errorf("%w: %w", domain.ErrEmbedding, lastErr)
	}
	return domain.EmbeddingResult{}, lastErr
}

func (r *ResilientEmbedder) attempt(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()
	return r.inner.Embed(actx, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
