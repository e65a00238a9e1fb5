package indexing

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/usecase/deletion"
)

// Records is the metadata record store contract.
// Save never recreates a record that was deleted; it returns domain.ErrNotFound instead.
type Records interface {
	Create(ctx context.Context, doc *document.Document) error
	Save(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (document.Document, error)
}

// Objects stores document binaries.
type Objects interface {
	NewKey(ownerID, filename string) string
	Put(ctx context.Context, key string, data []byte, contentType string) (document.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, src, dst string) (document.Object, error)
	Delete(ctx context.Context, key string) error
}

// Vectors writes and reaps index records.
type Vectors interface {
	UpsertBatch(ctx context.Context, recs []vector.Record) (int, error)
	Upsert(ctx context.Context, rec vector.Record) error
	DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error)
}

// Extractor turns a binary into text.
type Extractor interface {
	Supports(contentType string) bool
	Extract(ctx context.Context, contentType string, data []byte) (extract.Result, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Remover deletes a superseded document during reindexing.
type Remover interface {
	Delete(ctx context.Context, id, requester string) (deletion.Summary, error)
}
