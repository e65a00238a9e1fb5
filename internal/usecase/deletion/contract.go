package deletion

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// Records is the metadata record store contract.
type Records interface {
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q record.ListQuery) (record.Page, error)
}

// Vectors removes index records by filter.
type Vectors interface {
	DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error)
}

// Objects removes binaries. Deleting a missing key is not an error.
type Objects interface {
	Delete(ctx context.Context, key string) error
}
