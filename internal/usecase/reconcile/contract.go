package reconcile

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
)

// Records reads document metadata.
type Records interface {
	Get(ctx context.Context, id string) (document.Document, error)
}

// Vectors lists and reaps index records.
type Vectors interface {
	DocumentIDs(ctx context.Context) ([]string, error)
	DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error)
}
