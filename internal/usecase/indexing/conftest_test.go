package indexing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/metrics"
	"github.com/kailas-cloud/docrag/internal/usecase/deletion"
)

func TestMain(m *testing.M) {
	metrics.RegisterIndexingMetrics()
	os.Exit(m.Run())
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Records ---

type mockRecords struct {
	mu       sync.Mutex
	docs     map[string]document.Document
	createFn func(ctx context.Context, doc *document.Document) error
	saves    []document.Status
}

func newMockRecords() *mockRecords {
	return &mockRecords{docs: map[string]document.Document{}}
}

func (m *mockRecords) Create(ctx context.Context, doc *document.Document) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	m.docs[doc.ID()] = *doc
	return nil
}

func (m *mockRecords) Save(_ context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID()]; !ok {
		return domain.ErrNotFound
	}
	m.docs[doc.ID()] = *doc
	m.saves = append(m.saves, doc.Status())
	return nil
}

func (m *mockRecords) Get(_ context.Context, id string) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return document.Document{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockRecords) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
}

// --- Objects ---

type mockObjects struct {
	blobs   map[string][]byte
	putFn   func(ctx context.Context, key string) error
	deleted []string
	copied  []string
}

func newMockObjects() *mockObjects {
	return &mockObjects{blobs: map[string][]byte{}}
}

func (m *mockObjects) NewKey(owner, name string) string {
	return fmt.Sprintf("documents/%s/k%d_%s", owner, len(m.blobs)+len(m.deleted), name)
}

func (m *mockObjects) Put(ctx context.Context, key string, data []byte, _ string) (document.Object, error) {
	if m.putFn != nil {
		if err := m.putFn(ctx, key); err != nil {
			return document.Object{}, err
		}
	}
	m.blobs[key] = data
	return document.Object{Key: key, URL: "https://files.test/" + key, Bytes: int64(len(data))}, nil
}

func (m *mockObjects) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return b, nil
}

func (m *mockObjects) Copy(ctx context.Context, src, dst string) (document.Object, error) {
	b, ok := m.blobs[src]
	if !ok {
		return document.Object{}, domain.ErrObjectNotFound
	}
	m.copied = append(m.copied, dst)
	return m.Put(ctx, dst, b, "")
}

func (m *mockObjects) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Vectors ---

type mockVectors struct {
	mu       sync.Mutex
	stored   map[string]vector.Record
	batchFn  func(ctx context.Context, recs []vector.Record) (int, error)
	upsertFn func(ctx context.Context, rec vector.Record) error
	filters  []string
}

func newMockVectors() *mockVectors {
	return &mockVectors{stored: map[string]vector.Record{}}
}

func (m *mockVectors) UpsertBatch(ctx context.Context, recs []vector.Record) (int, error) {
	if m.batchFn != nil {
		if n, err := m.batchFn(ctx, recs); err != nil {
			return n, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range recs {
		m.stored[recs[i].ID()] = recs[i]
	}
	return len(recs), nil
}

func (m *mockVectors) Upsert(ctx context.Context, rec vector.Record) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[rec.ID()] = rec
	return nil
}

func (m *mockVectors) DeleteByFilter(_ context.Context, expr filter.Expression) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, expr.String())
	n := 0
	for id, r := range m.stored {
		if r.DocumentID == expr.Clauses()[0].Value() {
			delete(m.stored, id)
			n++
		}
	}
	return n, nil
}

// --- Embedder ---

type mockEmbedder struct {
	calls   atomic.Int64
	embedFn func(ctx context.Context, call int64, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	call := m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, call, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3, 0.4}}, nil
}

// --- Remover ---

type mockRemover struct {
	removed []string
}

func (m *mockRemover) Delete(_ context.Context, id, _ string) (deletion.Summary, error) {
	m.removed = append(m.removed, id)
	return deletion.Summary{DocumentID: id}, nil
}

// --- Fixture ---

type fixture struct {
	svc      *Service
	records  *mockRecords
	objects  *mockObjects
	vectors  *mockVectors
	embedder *mockEmbedder
	remover  *mockRemover
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		records:  newMockRecords(),
		objects:  newMockObjects(),
		vectors:  newMockVectors(),
		embedder: &mockEmbedder{},
		remover:  &mockRemover{},
	}
	f.svc = New(f.records, f.objects, f.vectors, extract.Default(), f.embedder,
		Config{Concurrency: 3, MaxUploadBytes: 1 << 20}).WithRemover(f.remover)
	var n atomic.Int64
	f.svc.newID = func() string { return fmt.Sprintf("doc-%d", n.Add(1)) }
	f.svc.now = func() time.Time { return t0 }
	return f
}

// words returns n distinct words; 3000 of them select the 500/100 band.
func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(w, " ")
}

func textUpload(owner, text string) Upload {
	return Upload{OwnerID: owner, Name: "notes.txt", ContentType: "text/plain", Data: []byte(text)}
}
