package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Generator answers single-turn prompts through the chat completions API.
type Generator struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generator.
func NewGenerator(cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: providerName(cfg),
		logger:   logger,
	}
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		User:        g.user,
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, errorType(err)).Inc()
		return "", parseAPIError(err, domain.ErrGeneration)
	}
	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "empty_response").Inc()
		return "", fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}

	metrics.ModelRequestsTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(metrics.KindGeneration, g.provider, g.model).Observe(duration.Seconds())
	metrics.ModelTokensTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "prompt").
		Add(float64(resp.Usage.PromptTokens))
	metrics.ModelTokensTotal.WithLabelValues(metrics.KindGeneration, g.provider, g.model, "completion").
		Add(float64(resp.Usage.CompletionTokens))

	g.logger.Debug("completion finished",
		zap.String("model", g.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Duration("duration", duration),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
