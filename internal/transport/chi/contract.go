package chi

import (
	"context"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/catalog"
	"github.com/kailas-cloud/docrag/internal/usecase/deletion"
	"github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/indexing"
)

// Indexer ingests and reindexes documents.
type Indexer interface {
	Ingest(ctx context.Context, up indexing.Upload) (indexing.Outcome, error)
	Reindex(ctx context.Context, id, requester string) (indexing.Outcome, error)
}

// Deleter removes documents.
type Deleter interface {
	Delete(ctx context.Context, id, requester string) (deletion.Summary, error)
	DeleteMany(ctx context.Context, ids []string, requester string) (deletion.BulkSummary, error)
	DeleteAllForOwner(ctx context.Context, owner string) (deletion.BulkSummary, error)
}

// Answerer answers questions about a document.
type Answerer interface {
	Answer(ctx context.Context, id, requester, query string) (answer.Answer, error)
}

// Catalog serves document metadata.
//
//nolint:interfacebloat // one method per metadata endpoint
type Catalog interface {
	Get(ctx context.Context, id, requester string) (document.Document, error)
	Info(ctx context.Context, id, requester string) (document.Document, error)
	List(ctx context.Context, requester string, f catalog.ListFilter) (catalog.Page, error)
	Update(ctx context.Context, id, requester string, p document.Patch) (document.Document, error)
	Share(ctx context.Context, id, requester, userID string, perm document.Permission) (document.Document, error)
	Unshare(ctx context.Context, id, requester, userID string) (document.Document, error)
	Download(ctx context.Context, id, requester string) (catalog.Download, error)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
