package redis

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetNXFn   func(ctx context.Context, key string, data []byte) error
	jsonSetXXFn   func(ctx context.Context, key string, data []byte) error
	jsonGetFn     func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delMultiFn    func(ctx context.Context, keys []string) (int, error)
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	searchListFn  func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) JSONSetNX(ctx context.Context, key string, data []byte) error {
	if m.jsonSetNXFn != nil {
		return m.jsonSetNXFn(ctx, key, data)
	}
	return nil
}

func (m *mockStore) JSONSetXX(ctx context.Context, key string, data []byte) error {
	if m.jsonSetXXFn != nil {
		return m.jsonSetXXFn(ctx, key, data)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
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

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "docrag:"), ms
}

func testDocument(t *testing.T) document.Document {
	t.Helper()
	doc, err := document.New("doc-1", "alice", "report.pdf", "application/pdf", 100,
		document.Object{Key: "documents/alice/k_report.pdf", Bytes: 100, Format: "pdf"},
		time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}
