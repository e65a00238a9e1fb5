// Package sqlstore keeps document records in Postgres (pgx) or SQLite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// Dialect selects placeholder style and driver.
type Dialect string

// Supported dialects.
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  id         TEXT PRIMARY KEY,
  owner_id   TEXT NOT NULL,
  status     TEXT NOT NULL,
  is_public  INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_owner_status_created
  ON documents (owner_id, status, created_at);
CREATE INDEX IF NOT EXISTS documents_public_created
  ON documents (is_public, created_at);
CREATE TABLE IF NOT EXISTS document_shares (
  document_id TEXT NOT NULL,
  user_id     TEXT NOT NULL,
  PRIMARY KEY (document_id, user_id)
);
CREATE INDEX IF NOT EXISTS document_shares_user
  ON document_shares (user_id);`

// Store implements the metadata record store on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects, applies the schema and returns a Store.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect != Postgres && dialect != SQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	conn, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// SQLite serializes writers.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: conn, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encode(doc *document.Document) (record.DTO, string, error) {
	dto := record.FromDocument(doc)
	body, err := json.Marshal(dto)
	if err != nil {
		return record.DTO{}, "", fmt.Errorf("marshal document: %w", err)
	}
	return dto, string(body), nil
}

func decode(body string) (document.Document, error) {
	var dto record.DTO
	if err := json.Unmarshal([]byte(body), &dto); err != nil {
		return document.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return dto.Document(), nil
}

// Create inserts a new record. An existing id is domain.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, doc *document.Document) error {
	dto, body, err := encode(doc)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO documents (id, owner_id, status, is_public, created_at, body) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO NOTHING`),
			dto.ID, dto.OwnerID, dto.Status, boolInt(dto.IsPublic), dto.CreatedAt, body)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", dto.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %s: %w", dto.ID, domain.ErrAlreadyExists)
		}
		return s.writeShares(ctx, tx, dto)
	})
}

// Save replaces an existing record; a missing record is domain.ErrNotFound.
func (s *Store) Save(ctx context.Context, doc *document.Document) error {
	dto, body, err := encode(doc)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE documents SET owner_id = ?, status = ?, is_public = ?, created_at = ?, body = ? WHERE id = ?`),
			dto.OwnerID, dto.Status, boolInt(dto.IsPublic), dto.CreatedAt, body, dto.ID)
		if err != nil {
			return fmt.Errorf("update document %s: %w", dto.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %s: %w", dto.ID, domain.ErrNotFound)
		}
		return s.writeShares(ctx, tx, dto)
	})
}

// writeShares replaces the share rows of dto.
func (s *Store) writeShares(ctx context.Context, tx *sql.Tx, dto record.DTO) error {
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM document_shares WHERE document_id = ?`), dto.ID); err != nil {
		return fmt.Errorf("clear shares of %s: %w", dto.ID, err)
	}
	for _, userID := range dto.SharedWith() {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO document_shares (document_id, user_id) VALUES (?, ?)`), dto.ID, userID); err != nil {
			return fmt.Errorf("share %s with %s: %w", dto.ID, userID, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get returns a record by id.
func (s *Store) Get(ctx context.Context, id string) (document.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM documents WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("select document %s: %w", id, err)
	}
	return decode(body)
}

// Delete removes a record and its shares; a missing record is domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM document_shares WHERE document_id = ?`), id); err != nil {
			return fmt.Errorf("delete shares of %s: %w", id, err)
		}
		return nil
	})
}

const sharedWith = `id IN (SELECT document_id FROM document_shares WHERE user_id = ?)`

// scopeWhere renders the visibility predicate of q.
func scopeWhere(q record.ListQuery) (string, []any) {
	switch q.Scope {
	case record.ScopeShared:
		return sharedWith, []any{q.UserID}
	case record.ScopePublic:
		return `is_public = 1`, nil
	case record.ScopeAll:
		return `(owner_id = ? OR is_public = 1 OR ` + sharedWith + `)`, []any{q.UserID, q.UserID}
	default:
		return `owner_id = ?`, []any{q.UserID}
	}
}

// List returns the records visible to q.UserID under q.Scope, newest first.
func (s *Store) List(ctx context.Context, q record.ListQuery) (record.Page, error) {
	if err := q.Validate(); err != nil {
		return record.Page{}, err
	}
	q = q.Normalize()

	pred, args := scopeWhere(q)
	where := ` WHERE ` + pred
	if q.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(q.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM documents`+where), args...).
		Scan(&total); err != nil {
		return record.Page{}, fmt.Errorf("count documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT body FROM documents`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`),
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return record.Page{}, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	page := record.Page{Total: total}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return record.Page{}, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decode(body)
		if err != nil {
			return record.Page{}, err
		}
		page.Documents = append(page.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return record.Page{}, fmt.Errorf("iterate documents: %w", err)
	}
	return page, nil
}
