package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

var base = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newDoc(t *testing.T, id, owner string, created time.Time) document.Document {
	t.Helper()
	doc, err := document.New(id, owner, id+".pdf", "application/pdf", 10,
		document.Object{Key: "documents/" + owner + "/" + id}, created)
	require.NoError(t, err)
	return doc
}

func TestCreateGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	doc := newDoc(t, "d1", "alice", base)

	require.NoError(t, s.Create(ctx, &doc))
	err := s.Create(ctx, &doc)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "got %v", err)

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID())
	assert.Equal(t, document.StatusPending, got.Status())
	assert.True(t, got.CreatedAt().Equal(base))
}

func TestSave(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	doc := newDoc(t, "d1", "alice", base)
	require.NoError(t, s.Create(ctx, &doc))

	require.NoError(t, doc.StartProcessing(base))
	require.NoError(t, s.Save(ctx, &doc))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got.Status())
}

func TestSave_DoesNotResurrect(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	doc := newDoc(t, "d1", "alice", base)
	require.NoError(t, s.Create(ctx, &doc))
	require.NoError(t, s.Delete(ctx, "d1"))

	err := s.Save(ctx, &doc)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_Missing(t *testing.T) {
	s := openTest(t)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), domain.ErrNotFound)
}

func TestList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i := range 5 {
		doc := newDoc(t, fmt.Sprintf("a%d", i), "alice", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			require.NoError(t, doc.Fail("extraction failed", base))
		}
		require.NoError(t, s.Create(ctx, &doc))
	}
	other := newDoc(t, "b1", "bob", base)
	require.NoError(t, s.Create(ctx, &other))

	page, err := s.List(ctx, record.ListQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Documents, 5)
	assert.Equal(t, "a4", page.Documents[0].ID(), "newest first")

	page, err = s.List(ctx, record.ListQuery{UserID: "alice", Status: document.StatusFailed, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Documents, 2)
	assert.Equal(t, "a4", page.Documents[0].ID())
	assert.Equal(t, "a2", page.Documents[1].ID())

	page, err = s.List(ctx, record.ListQuery{UserID: "alice", Status: document.StatusFailed, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "a0", page.Documents[0].ID())
}

func TestList_Scopes(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	public := true

	own := newDoc(t, "own", "bob", base)
	require.NoError(t, s.Create(ctx, &own))

	shared := newDoc(t, "shared", "alice", base.Add(time.Minute))
	require.NoError(t, shared.Share("bob", document.PermissionRead, base))
	require.NoError(t, s.Create(ctx, &shared))

	pub := newDoc(t, "pub", "carol", base.Add(2*time.Minute))
	require.NoError(t, s.Create(ctx, &pub))
	require.NoError(t, pub.Update(document.Patch{IsPublic: &public}, base))
	require.NoError(t, s.Save(ctx, &pub))

	private := newDoc(t, "private", "carol", base.Add(3*time.Minute))
	require.NoError(t, s.Create(ctx, &private))

	ids := func(scope record.Scope) []string {
		page, err := s.List(ctx, record.ListQuery{UserID: "bob", Scope: scope})
		require.NoError(t, err)
		out := make([]string, len(page.Documents))
		for i := range page.Documents {
			out[i] = page.Documents[i].ID()
		}
		assert.Equal(t, len(out), page.Total)
		return out
	}

	assert.Equal(t, []string{"own"}, ids(record.ScopeOwned))
	assert.Equal(t, []string{"shared"}, ids(record.ScopeShared))
	assert.Equal(t, []string{"pub"}, ids(record.ScopePublic))
	assert.Equal(t, []string{"pub", "shared", "own"}, ids(record.ScopeAll))
}

func TestList_ShareRowsFollowSaveAndDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	doc := newDoc(t, "d1", "alice", base)
	require.NoError(t, doc.Share("bob", document.PermissionRead, base))
	require.NoError(t, s.Create(ctx, &doc))

	require.NoError(t, doc.Unshare("bob", base))
	require.NoError(t, s.Save(ctx, &doc))
	page, err := s.List(ctx, record.ListQuery{UserID: "bob", Scope: record.ScopeShared})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total, "revoked share still listed")

	require.NoError(t, doc.Share("bob", document.PermissionWrite, base))
	require.NoError(t, s.Save(ctx, &doc))
	require.NoError(t, s.Delete(ctx, "d1"))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_shares`).Scan(&n))
	assert.Zero(t, n, "shares of a deleted document must be removed")
}

func TestList_RequiresUser(t *testing.T) {
	s := openTest(t)
	_, err := s.List(context.Background(), record.ListQuery{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	lite := &Store{dialect: SQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
