package catalog

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// Records is the metadata record store contract.
type Records interface {
	Get(ctx context.Context, id string) (document.Document, error)
	Save(ctx context.Context, doc *document.Document) error
	List(ctx context.Context, q record.ListQuery) (record.Page, error)
}

// URLResolver returns a durable download URL for an object key.
type URLResolver interface {
	URL(ctx context.Context, key string) (string, error)
}
