package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/record"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/catalog"
	"github.com/kailas-cloud/docrag/internal/usecase/deletion"
	"github.com/kailas-cloud/docrag/internal/usecase/health"
	"github.com/kailas-cloud/docrag/internal/usecase/indexing"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeIndexer struct {
	ingestFn  func(ctx context.Context, up indexing.Upload) (indexing.Outcome, error)
	reindexFn func(ctx context.Context, id, requester string) (indexing.Outcome, error)
}

func (f *fakeIndexer) Ingest(ctx context.Context, up indexing.Upload) (indexing.Outcome, error) {
	return f.ingestFn(ctx, up)
}

func (f *fakeIndexer) Reindex(ctx context.Context, id, requester string) (indexing.Outcome, error) {
	return f.reindexFn(ctx, id, requester)
}

type fakeDeleter struct {
	deleteFn     func(ctx context.Context, id, requester string) (deletion.Summary, error)
	deleteManyFn func(ctx context.Context, ids []string, requester string) (deletion.BulkSummary, error)
	deleteAllFn  func(ctx context.Context, owner string) (deletion.BulkSummary, error)
}

func (f *fakeDeleter) Delete(ctx context.Context, id, requester string) (deletion.Summary, error) {
	return f.deleteFn(ctx, id, requester)
}

func (f *fakeDeleter) DeleteMany(ctx context.Context, ids []string, requester string) (deletion.BulkSummary, error) {
	return f.deleteManyFn(ctx, ids, requester)
}

func (f *fakeDeleter) DeleteAllForOwner(ctx context.Context, owner string) (deletion.BulkSummary, error) {
	return f.deleteAllFn(ctx, owner)
}

type fakeAnswerer struct {
	answerFn func(ctx context.Context, id, requester, query string) (answer.Answer, error)
}

func (f *fakeAnswerer) Answer(ctx context.Context, id, requester, query string) (answer.Answer, error) {
	return f.answerFn(ctx, id, requester, query)
}

type fakeCatalog struct {
	getFn      func(ctx context.Context, id, requester string) (document.Document, error)
	listFn     func(ctx context.Context, requester string, lf catalog.ListFilter) (catalog.Page, error)
	updateFn   func(ctx context.Context, id, requester string, p document.Patch) (document.Document, error)
	shareFn    func(ctx context.Context, id, requester, userID string, perm document.Permission) (document.Document, error)
	unshareFn  func(ctx context.Context, id, requester, userID string) (document.Document, error)
	downloadFn func(ctx context.Context, id, requester string) (catalog.Download, error)
}

func (f *fakeCatalog) Get(ctx context.Context, id, requester string) (document.Document, error) {
	return f.getFn(ctx, id, requester)
}

func (f *fakeCatalog) Info(ctx context.Context, id, requester string) (document.Document, error) {
	return f.getFn(ctx, id, requester)
}

func (f *fakeCatalog) List(ctx context.Context, requester string, lf catalog.ListFilter) (catalog.Page, error) {
	return f.listFn(ctx, requester, lf)
}

func (f *fakeCatalog) Update(ctx context.Context, id, requester string, p document.Patch) (document.Document, error) {
	return f.updateFn(ctx, id, requester, p)
}

func (f *fakeCatalog) Share(
	ctx context.Context, id, requester, userID string, perm document.Permission,
) (document.Document, error) {
	return f.shareFn(ctx, id, requester, userID, perm)
}

func (f *fakeCatalog) Unshare(ctx context.Context, id, requester, userID string) (document.Document, error) {
	return f.unshareFn(ctx, id, requester, userID)
}

func (f *fakeCatalog) Download(ctx context.Context, id, requester string) (catalog.Download, error) {
	return f.downloadFn(ctx, id, requester)
}

type fakeHealth struct{ report health.Report }

func (f *fakeHealth) Check(context.Context) health.Report { return f.report }

type fixture struct {
	indexer  *fakeIndexer
	deleter  *fakeDeleter
	answerer *fakeAnswerer
	catalog  *fakeCatalog
	health   *fakeHealth
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		indexer:  &fakeIndexer{},
		deleter:  &fakeDeleter{},
		answerer: &fakeAnswerer{},
		catalog:  &fakeCatalog{},
		health:   &fakeHealth{report: health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{}}},
	}
	srv := NewServer(Services{
		Indexer:  f.indexer,
		Deleter:  f.deleter,
		Answerer: f.answerer,
		Catalog:  f.catalog,
		Health:   f.health,
	}, 1<<20, zap.NewNop())

	r := gochi.NewRouter()
	r.Use(AuthMiddleware(AuthConfig{}))
	srv.Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(UserHeader, "alice")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func testDoc(t *testing.T, id, owner string) document.Document {
	t.Helper()
	doc, err := document.New(id, owner, "guide.txt", "text/plain", 42,
		document.Object{Key: "documents/" + owner + "/k_guide.txt", Bytes: 42, Format: "txt"}, testNow)
	require.NoError(t, err)
	return doc
}

func multipartBody(t *testing.T, fields map[string]string, filename, partType string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		if partType != "" {
			h.Set("Content-Type", partType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

func TestUploadDocument_Created(t *testing.T) {
	f := newFixture(t)
	var got indexing.Upload
	f.indexer.ingestFn = func(_ context.Context, up indexing.Upload) (indexing.Outcome, error) {
		got = up
		return indexing.Outcome{Document: testDoc(t, "d1", "alice"), Message: indexing.MsgAllIndexed, Success: true}, nil
	}

	body, ct := multipartBody(t, map[string]string{
		"name": "  Guide  ", "description": "how-to", "tags": "a, b,,c",
	}, "guide.md", "application/octet-stream", []byte("hello"))
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, indexing.MsgAllIndexed, env.Message)
	assert.Equal(t, "d1", dataMap(t, env)["id"])

	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "Guide", got.Name)
	assert.Equal(t, "how-to", got.Description)
	assert.Equal(t, []string{"a", "b", "c"}, got.Tags)
	assert.Equal(t, "text/markdown", got.ContentType)
	assert.Equal(t, []byte("hello"), got.Data)
}

func TestUploadDocument_NameDefaultsToFilename(t *testing.T) {
	f := newFixture(t)
	var got indexing.Upload
	f.indexer.ingestFn = func(_ context.Context, up indexing.Upload) (indexing.Outcome, error) {
		got = up
		return indexing.Outcome{Document: testDoc(t, "d1", "alice"), Success: true}, nil
	}

	body, ct := multipartBody(t, nil, "report.pdf", "application/pdf", []byte("%PDF"))
	rr, _ := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "report.pdf", got.Name)
	assert.Equal(t, "application/pdf", got.ContentType)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, map[string]string{"name": "x"}, "", "", nil)
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Category)
}

func TestUploadDocument_TooLarge(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, nil, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 3<<20))
	rr, _ := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestUploadDocument_IndexingFailureCarriesDocument(t *testing.T) {
	f := newFixture(t)
	f.indexer.ingestFn = func(context.Context, indexing.Upload) (indexing.Outcome, error) {
		doc := testDoc(t, "d9", "alice")
		require.NoError(t, doc.Fail(indexing.ReasonInsufficient, testNow))
		return indexing.Outcome{Document: doc, Message: indexing.ReasonInsufficient},
			fmt.Errorf("%w: insufficient content", domain.ErrValidation)
	}

	body, ct := multipartBody(t, nil, "tiny.txt", "text/plain", []byte("hi"))
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, indexing.ReasonInsufficient, env.Message)
	data := dataMap(t, env)
	assert.Equal(t, "d9", data["id"])
	assert.Equal(t, "failed", data["status"])
}

func TestUploadDocument_UpstreamErrorHidesDetail(t *testing.T) {
	f := newFixture(t)
	f.indexer.ingestFn = func(context.Context, indexing.Upload) (indexing.Outcome, error) {
		return indexing.Outcome{Message: indexing.MsgNoneIndexed},
			fmt.Errorf("embed: %w: dial tcp 10.0.0.7:443: refused", domain.ErrEmbedding)
	}

	body, ct := multipartBody(t, nil, "a.txt", "text/plain", []byte("x"))
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents", body, ct)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "embedding_error", env.Error.Category)
	assert.Equal(t, domain.ErrEmbedding.Error(), env.Error.Detail)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		category string
	}{
		{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
		{domain.ErrUnsupportedContent, http.StatusUnsupportedMediaType, "validation_error"},
		{domain.ErrPermission, http.StatusForbidden, "permission_denied"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrNoMatch, http.StatusNotFound, "no_match"},
		{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
		{domain.ErrExtraction, http.StatusUnprocessableEntity, "extraction_error"},
		{domain.ErrIndex, http.StatusBadGateway, "index_error"},
		{domain.ErrObjectStore, http.StatusBadGateway, "object_store_error"},
		{domain.ErrGeneration, http.StatusBadGateway, "generation_error"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.catalog.getFn = func(context.Context, string, string) (document.Document, error) {
				return document.Document{}, fmt.Errorf("get: %w", tt.err)
			}
			rr, env := f.do(t, http.MethodGet, "/api/v1/documents/d1", nil, "")

			assert.Equal(t, tt.status, rr.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.category, env.Error.Category)
		})
	}
}

func TestGetDocument_SharesOnlyVisibleToOwner(t *testing.T) {
	f := newFixture(t)
	owner := "alice"
	f.catalog.getFn = func(_ context.Context, id, _ string) (document.Document, error) {
		doc := testDoc(t, id, owner)
		require.NoError(t, doc.Share("bob", document.PermissionRead, testNow))
		return doc, nil
	}

	_, env := f.do(t, http.MethodGet, "/api/v1/documents/d1", nil, "")
	assert.Len(t, dataMap(t, env)["shared_with"], 1)

	owner = "carol"
	_, env = f.do(t, http.MethodGet, "/api/v1/documents/d1", nil, "")
	assert.NotContains(t, dataMap(t, env), "shared_with")
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t)
	f.catalog.listFn = func(_ context.Context, requester string, lf catalog.ListFilter) (catalog.Page, error) {
		assert.Equal(t, "alice", requester)
		assert.Equal(t, catalog.ListFilter{Scope: "all", Status: "completed", Page: 2, Limit: 5}, lf)
		shared := testDoc(t, "d2", "bob")
		require.NoError(t, shared.Share("alice", document.PermissionWrite, testNow))
		return catalog.Page{
			Documents: []document.Document{testDoc(t, "d1", "alice"), shared},
			Scope:     record.ScopeAll,
			Total:     6, Page: 2, Limit: 5,
		}, nil
	}

	rr, env := f.do(t, http.MethodGet, "/api/v1/documents?type=all&status=completed&page=2&limit=5", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	data := dataMap(t, env)
	assert.InDelta(t, 6, data["total"], 0)
	assert.Equal(t, "all", data["type"])

	docs, ok := data["documents"].([]any)
	require.True(t, ok)
	require.Len(t, docs, 2)
	assert.Equal(t, "owner", docs[0].(map[string]any)["access"])
	second := docs[1].(map[string]any)
	assert.Equal(t, "write", second["access"])
	assert.NotContains(t, second, "shared_with", "shares are visible to the owner only")
}

func TestListDocuments_Defaults(t *testing.T) {
	f := newFixture(t)
	f.catalog.listFn = func(_ context.Context, _ string, lf catalog.ListFilter) (catalog.Page, error) {
		assert.Equal(t, catalog.ListFilter{}, lf)
		return catalog.Page{Scope: record.ScopeOwned, Page: 1, Limit: 10}, nil
	}
	rr, env := f.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "owned", dataMap(t, env)["type"])
}

func TestListDocuments_BadParams(t *testing.T) {
	for _, query := range []string{"page=two", "limit=1.5"} {
		t.Run(query, func(t *testing.T) {
			f := newFixture(t)
			rr, _ := f.do(t, http.MethodGet, "/api/v1/documents?"+query, nil, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestListDocuments_BadType(t *testing.T) {
	f := newFixture(t)
	f.catalog.listFn = func(_ context.Context, _ string, lf catalog.ListFilter) (catalog.Page, error) {
		_, err := record.ParseScope(lf.Scope)
		return catalog.Page{}, err
	}
	rr, env := f.do(t, http.MethodGet, "/api/v1/documents?type=mine", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Category)
}

func TestUpdateDocument(t *testing.T) {
	f := newFixture(t)
	f.catalog.updateFn = func(_ context.Context, id, _ string, p document.Patch) (document.Document, error) {
		require.NotNil(t, p.Name)
		require.NotNil(t, p.IsPublic)
		assert.Nil(t, p.Description)
		doc := testDoc(t, id, "alice")
		require.NoError(t, doc.Update(p, testNow))
		return doc, nil
	}

	rr, env := f.do(t, http.MethodPatch, "/api/v1/documents/d1",
		[]byte(`{"name":"Renamed","is_public":true}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Renamed", dataMap(t, env)["name"])
	assert.Equal(t, true, dataMap(t, env)["is_public"])
}

func TestUpdateDocument_UnknownField(t *testing.T) {
	f := newFixture(t)
	rr, _ := f.do(t, http.MethodPatch, "/api/v1/documents/d1", []byte(`{"owner_id":"eve"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestShareAndUnshare(t *testing.T) {
	f := newFixture(t)
	f.catalog.shareFn = func(
		_ context.Context, id, _, userID string, perm document.Permission,
	) (document.Document, error) {
		assert.Equal(t, "bob", userID)
		assert.Equal(t, document.PermissionRead, perm)
		return testDoc(t, id, "alice"), nil
	}
	f.catalog.unshareFn = func(_ context.Context, id, _, userID string) (document.Document, error) {
		assert.Equal(t, "bob", userID)
		return testDoc(t, id, "alice"), nil
	}

	rr, _ := f.do(t, http.MethodPost, "/api/v1/documents/d1/share", []byte(`{"user_id":"bob"}`), "application/json")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodDelete, "/api/v1/documents/d1/share/bob", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDownloadDocument(t *testing.T) {
	f := newFixture(t)
	f.catalog.downloadFn = func(context.Context, string, string) (catalog.Download, error) {
		return catalog.Download{URL: "https://s3/x", Name: "guide.txt", ContentType: "text/plain", Size: 42}, nil
	}
	rr, env := f.do(t, http.MethodGet, "/api/v1/documents/d1/download", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://s3/x", dataMap(t, env)["url"])
}

func TestAskDocument(t *testing.T) {
	f := newFixture(t)
	f.answerer.answerFn = func(_ context.Context, id, requester, query string) (answer.Answer, error) {
		assert.Equal(t, "d1", id)
		assert.Equal(t, "alice", requester)
		assert.Equal(t, "what is it?", query)
		return answer.Answer{
			Text:     "a guide",
			Document: testDoc(t, id, "alice"),
			Sources:  []answer.Source{{Rank: 1, Seq: 3, Score: 0.9}},
		}, nil
	}

	rr, env := f.do(t, http.MethodPost, "/api/v1/documents/d1/ask", []byte(`{"query":"what is it?"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	data := dataMap(t, env)
	assert.Equal(t, "a guide", data["answer"])
	assert.Equal(t, "guide.txt", data["document_name"])
	assert.Len(t, data["sources"], 1)
}

func TestAskDocument_NoMatch(t *testing.T) {
	f := newFixture(t)
	f.answerer.answerFn = func(context.Context, string, string, string) (answer.Answer, error) {
		return answer.Answer{}, domain.ErrNoMatch
	}
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents/d1/ask", []byte(`{"query":"x"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "no_match", env.Error.Category)
}

func TestReindexDocument(t *testing.T) {
	f := newFixture(t)
	f.indexer.reindexFn = func(ctx context.Context, id, requester string) (indexing.Outcome, error) {
		assert.Equal(t, "d1", id)
		assert.NoError(t, ctx.Err())
		return indexing.Outcome{Document: testDoc(t, "d2", requester), Message: indexing.MsgAllIndexed, Success: true}, nil
	}
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents/d1/reindex", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "d2", dataMap(t, env)["id"])
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	f.deleter.deleteFn = func(_ context.Context, id, requester string) (deletion.Summary, error) {
		return deletion.Summary{DocumentID: id, VectorsDeleted: 4, ObjectDeleted: true, RecordDeleted: true}, nil
	}
	rr, env := f.do(t, http.MethodDelete, "/api/v1/documents/d1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.InDelta(t, 4, dataMap(t, env)["vectors_deleted"], 0)
}

func TestDeleteDocuments_Bulk(t *testing.T) {
	f := newFixture(t)
	f.deleter.deleteManyFn = func(_ context.Context, ids []string, _ string) (deletion.BulkSummary, error) {
		assert.Equal(t, []string{"a", "b"}, ids)
		return deletion.BulkSummary{Requested: 2, Deleted: []deletion.Summary{{DocumentID: "a"}}, Skipped: []string{"b"}}, nil
	}
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents/delete", []byte(`{"ids":["a","b"]}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Deleted 1 of 2 documents", env.Message)
	assert.Equal(t, []any{"b"}, dataMap(t, env)["skipped"])
}

func TestDeleteDocuments_NothingOwned(t *testing.T) {
	f := newFixture(t)
	f.deleter.deleteManyFn = func(context.Context, []string, string) (deletion.BulkSummary, error) {
		return deletion.BulkSummary{Requested: 1, Skipped: []string{"x"}}, domain.ErrNotFound
	}
	rr, env := f.do(t, http.MethodPost, "/api/v1/documents/delete", []byte(`{"ids":["x"]}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, []any{"x"}, dataMap(t, env)["skipped"])
}

func TestDeleteAllDocuments(t *testing.T) {
	f := newFixture(t)
	f.deleter.deleteAllFn = func(_ context.Context, owner string) (deletion.BulkSummary, error) {
		assert.Equal(t, "alice", owner)
		return deletion.BulkSummary{Requested: 2, Deleted: []deletion.Summary{{DocumentID: "a"}, {DocumentID: "b"}}}, nil
	}
	rr, env := f.do(t, http.MethodDelete, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Deleted 2 documents", env.Message)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rr, _ := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	f.health.report = health.Report{Status: health.Unhealthy, Checks: map[string]health.CheckResult{"records": health.CheckError}}
	rr, _ = f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body healthDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Checks["records"])
}

func TestUploadContentType(t *testing.T) {
	tests := []struct{ header, filename, want string }{
		{"text/plain; charset=utf-8", "a.bin", "text/plain"},
		{"", "notes.MD", "text/markdown"},
		{"application/octet-stream", "r.pdf", "application/pdf"},
		{"", "blob", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, uploadContentType(tt.header, tt.filename), "%q %q", tt.header, tt.filename)
	}
}
