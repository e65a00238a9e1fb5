// Package ollama adapts a local Ollama server to the embedding and generation contracts.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

const provider = "ollama"

// Config holds Ollama connection settings.
type Config struct {
	BaseURL string // e.g. http://localhost:11434
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client wraps api.Client for one model.
type Client struct {
	api    *api.Client
	model  string
	logger *zap.Logger
}

// New parses the base URL and builds a client.
func New(cfg *Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = "http://localhost:11434"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", raw, err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:    api.NewClient(u, httpClient),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Embed implements domain.Embedder.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		c.recordError(metrics.KindEmbedding, err)
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embeddings: %w: %w", domain.ErrEmbedding, err)
	}
	if len(resp.Embedding) == 0 {
		c.recordError(metrics.KindEmbedding, nil)
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbedding)
	}

	metrics.ModelRequestsTotal.WithLabelValues(metrics.KindEmbedding, provider, c.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(metrics.KindEmbedding, provider, c.model).
		Observe(time.Since(start).Seconds())

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// Generate implements domain.Generator with a single non-streaming chat turn.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	stream := false
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  options,
	}

	start := time.Now()
	var (
		out  strings.Builder
		last api.ChatResponse
	)
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		c.recordError(metrics.KindGeneration, err)
		return "", fmt.Errorf("ollama chat: %w: %w", domain.ErrGeneration, err)
	}
	answer := strings.TrimSpace(out.String())
	if answer == "" {
		c.recordError(metrics.KindGeneration, nil)
		return "", fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}

	metrics.ModelRequestsTotal.WithLabelValues(metrics.KindGeneration, provider, c.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(metrics.KindGeneration, provider, c.model).
		Observe(time.Since(start).Seconds())
	metrics.ModelTokensTotal.WithLabelValues(metrics.KindGeneration, provider, c.model, "prompt").
		Add(float64(last.PromptEvalCount))
	metrics.ModelTokensTotal.WithLabelValues(metrics.KindGeneration, provider, c.model, "completion").
		Add(float64(last.EvalCount))

	return answer, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}

func (c *Client) recordError(kind string, err error) {
	errType := "empty_response"
	if err != nil {
		errType = "transport"
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			errType = fmt.Sprintf("http_%d", statusErr.StatusCode)
		}
	}
	metrics.ModelRequestsTotal.WithLabelValues(kind, provider, c.model, "error").Inc()
	metrics.ModelErrorsTotal.WithLabelValues(kind, provider, c.model, errType).Inc()
	c.logger.Warn("ollama request failed",
		zap.String("kind", kind),
		zap.String("model", c.model),
		zap.String("error_type", errType),
		zap.Error(err),
	)
}
