package redis

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn           func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn      func(ctx context.Context, items []db.HashSetItem) error
	delMultiFn       func(ctx context.Context, keys []string) (int, error)
	indexExistsFn    func(ctx context.Context, name string) (bool, error)
	indexDimensionFn func(ctx context.Context, name, field string) (int, error)
	createIndexFn    func(ctx context.Context, def *db.IndexDefinition) error
	searchKNNFn      func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn     func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) (int, error) {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return len(keys), nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) IndexDimension(ctx context.Context, name, field string) (int, error) {
	if m.indexDimensionFn != nil {
		return m.indexDimensionFn(ctx, name, field)
	}
	return 0, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

const testDims = 4

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "docrag:", testDims, HNSWConfig{M: 16, EFConstruction: 200}), ms
}

func testRecord(seq int) vector.Record {
	return vector.Record{
		DocumentID:   "doc-1",
		DocumentName: "report.pdf",
		Seq:          seq,
		Text:         "segment text",
		OwnerID:      "alice",
		CreatedAt:    time.UnixMilli(1700000000000),
		SourceURL:    "http://objects/report.pdf",
		Vector:       []float32{0.1, 0.2, 0.3, 0.4},
	}
}
