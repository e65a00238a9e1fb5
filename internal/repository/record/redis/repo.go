// Package redis stores document records as RedisJSON documents indexed for scoped listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// store is the consumer interface for document records (ISP).
//
//nolint:interfacebloat // JSON CRUD plus index lifecycle and listing
type store interface {
	JSONSetNX(ctx context.Context, key string, data []byte) error
	JSONSetXX(ctx context.Context, key string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	DelMulti(ctx context.Context, keys []string) (int, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// Repo implements the metadata record store on Redis.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
}

// New creates a record repository. prefix is the global key prefix, e.g. "docrag:".
func New(s store, prefix string) *Repo {
	return &Repo{
		store:     s,
		keyPrefix: prefix + "doc:",
		indexName: prefix + "doc:idx",
	}
}

func (r *Repo) key(id string) string { return r.keyPrefix + id }

// EnsureIndex creates the listing index if it is missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		return nil
	}
	def := db.NewIndex(r.indexName).
		OnJSON().
		Prefix(r.keyPrefix).
		Tag("$.owner_id").As("owner_id").
		Tag("$.status").As("status").
		Tag("$.visibility").As("visibility").
		Tag("$.shares[*].user_id").As("shared_with").
		Numeric("$.created_at").As("created_at").Sortable().
		MustBuild()
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return nil
}

// Create inserts a new record. An existing id is domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, doc *document.Document) error {
	data, err := json.Marshal(record.FromDocument(doc))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := r.store.JSONSetNX(ctx, r.key(doc.ID()), data); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create document %s: %w", doc.ID(), err)
	}
	return nil
}

// Save replaces an existing record. A deleted record is never resurrected: it returns domain.ErrNotFound.
func (r *Repo) Save(ctx context.Context, doc *document.Document) error {
	data, err := json.Marshal(record.FromDocument(doc))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := r.store.JSONSetXX(ctx, r.key(doc.ID()), data); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrNotFound)
		}
		return fmt.Errorf("save document %s: %w", doc.ID(), err)
	}
	return nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, id string) (document.Document, error) {
	raw, err := r.store.JSONGet(ctx, r.key(id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return document.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	// JSONPath "$" wraps the root in an array.
	var dtos []record.DTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return document.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	if len(dtos) == 0 {
		return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return dtos[0].Document(), nil
}

// Delete removes a record. A missing record is domain.ErrNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	n, err := r.store.DelMulti(ctx, []string{r.key(id)})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns the records visible to q.UserID under q.Scope, newest first.
func (r *Repo) List(ctx context.Context, q record.ListQuery) (record.Page, error) {
	if err := q.Validate(); err != nil {
		return record.Page{}, err
	}
	q = q.Normalize()
	clauses := []filter.Clause{scopeClause(q)}
	if q.Status != "" {
		clauses = append(clauses, filter.Eq("status", string(q.Status)))
	}
	expr, err := filter.New(clauses...)
	if err != nil {
		return record.Page{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	res, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: r.indexName,
		Filters:   expr,
		Offset:    q.Offset,
		Limit:     q.Limit,
		Fields:    []string{"$"},
		SortBy:    "created_at",
		SortDesc:  true,
	})
	if err != nil {
		return record.Page{}, fmt.Errorf("list %s documents of %s: %w", q.Scope, q.UserID, err)
	}

	page := record.Page{Total: res.Total, Documents: make([]document.Document, 0, len(res.Entries))}
	for _, e := range res.Entries {
		var dto record.DTO
		if err := json.Unmarshal([]byte(e.Fields["$"]), &dto); err != nil {
			return record.Page{}, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		page.Documents = append(page.Documents, dto.Document())
	}
	return page, nil
}

func scopeClause(q record.ListQuery) filter.Clause {
	owned := filter.Eq("owner_id", q.UserID)
	shared := filter.Eq("shared_with", q.UserID)
	public := filter.Eq("visibility", record.VisibilityPublic)
	switch q.Scope {
	case record.ScopeShared:
		return shared
	case record.ScopePublic:
		return public
	case record.ScopeAll:
		return filter.AnyOf(owned, public, shared)
	default:
		return owned
	}
}
