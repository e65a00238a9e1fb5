package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Generator produces text from a single-turn prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions tunes a single generation call. Zero values mean provider defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// DimensionGuard rejects vectors whose length differs from the configured dimension.
type DimensionGuard struct {
	inner Embedder
	dims  int
}

// NewDimensionGuard wraps inner. dims <= 0 disables the check.
func NewDimensionGuard(inner Embedder, dims int) *DimensionGuard {
	return &DimensionGuard{inner: inner, dims: dims}
}

// Embed delegates to the inner embedder and validates the result.
func (g *DimensionGuard) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	if len(res.Embedding) == 0 {
		return EmbeddingResult{}, fmt.Errorf("%w: empty vector", ErrEmbedding)
	}
	if g.dims > 0 && len(res.Embedding) != g.dims {
		return EmbeddingResult{}, fmt.Errorf("%w: %w: got %d, want %d",
			ErrEmbedding, ErrVectorDimMismatch, len(res.Embedding), g.dims)
	}
	return res, nil
}
