// Package answer answers questions about one document from its indexed segments.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	domanswer "github.com/kailas-cloud/docrag/internal/domain/answer"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/permission"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/logger"
)

// DefaultTopK is the number of segments fed to the model.
const DefaultTopK = 5

// Source is one segment used as context, in rank order.
type Source struct {
	Rank  int
	Seq   int
	Score float64
}

// Answer is a generated reply with its provenance.
type Answer struct {
	Text     string
	Document document.Document
	Sources  []Source
}

// Service is the retrieval-answering pipeline.
type Service struct {
	records   Records
	searcher  Searcher
	embedder  Embedder
	generator Generator
	topK      int
	genOpts   domain.GenerateOptions
}

// New creates an answering service.
func New(records Records, searcher Searcher, embedder Embedder, generator Generator) *Service {
	return &Service{
		records:   records,
		searcher:  searcher,
		embedder:  embedder,
		generator: generator,
		topK:      DefaultTopK,
	}
}

// WithTopK overrides the number of retrieved segments.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// WithGenerateOptions sets model limits for every call.
func (s *Service) WithGenerateOptions(opts domain.GenerateOptions) *Service {
	s.genOpts = opts
	return s
}

// Answer retrieves the segments of documentID closest to query and asks the model
// to answer from them alone.
func (s *Service) Answer(ctx context.Context, documentID, requester, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if len(query) > domanswer.MaxQueryLength {
		return Answer{}, fmt.Errorf("%w: query too long (max %d)", domain.ErrValidation, domanswer.MaxQueryLength)
	}

	doc, err := s.records.Get(ctx, documentID)
	if err != nil {
		return Answer{}, fmt.Errorf("get document: %w", err)
	}
	if !permission.For(&doc, requester).Allows(permission.Read) {
		return Answer{}, fmt.Errorf("%w: read access required", domain.ErrPermission)
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.searcher.Search(ctx, emb.Embedding, s.topK,
		filter.MustNew(filter.Eq(vector.FieldDocumentID, documentID)))
	if err != nil {
		return Answer{}, fmt.Errorf("search segments: %w", err)
	}
	if len(hits) == 0 {
		return Answer{}, fmt.Errorf("%w: confirm the document was indexed", domain.ErrNoMatch)
	}

	texts := make([]string, len(hits))
	sources := make([]Source, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
		sources[i] = Source{Rank: i + 1, Seq: h.Seq, Score: h.Score}
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, domanswer.Prompt(query, texts), s.genOpts)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	logger.FromContext(ctx).Debug("answer generated",
		zap.String("document_id", documentID),
		zap.Int("segments", len(hits)),
		zap.Float64("top_score", hits[0].Score),
		zap.Duration("duration", time.Since(start)),
	)

	return Answer{Text: text, Document: doc, Sources: sources}, nil
}
