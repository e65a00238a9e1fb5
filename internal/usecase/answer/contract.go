package answer

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
)

// Records reads document metadata.
type Records interface {
	Get(ctx context.Context, id string) (document.Document, error)
}

// Searcher runs similarity search over the vector index.
type Searcher interface {
	Search(ctx context.Context, vec []float32, topK int, expr filter.Expression) ([]vector.Hit, error)
}

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces the grounded answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
}
