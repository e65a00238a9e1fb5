// Package redis stores segment vectors as Redis hashes behind an FT vector index.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docrag/internal/db"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
)

const (
	vectorField = "vector"
	// scanPage is the number of keys fetched per listing round.
	scanPage = 1000
	// maxScanRounds caps listing loops over an index that keeps changing.
	maxScanRounds = 10000
)

// store is the consumer interface for segment vectors (ISP).
//
//nolint:interfacebloat // hash writes, index lifecycle and search
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) (int, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexDimension(ctx context.Context, name, field string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW build parameters.
type HNSWConfig struct {
	M              int
	EFConstruction int
}

// Repo is the vector index gateway over Redis.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
	dims      int
	hnsw      HNSWConfig
}

// New creates a vector repository. prefix is the global key prefix, e.g. "docrag:".
func New(s store, prefix string, dims int, hnsw HNSWConfig) *Repo {
	return &Repo{
		store:     s,
		keyPrefix: prefix + "seg:",
		indexName: prefix + "seg:idx",
		dims:      dims,
		hnsw:      hnsw,
	}
}

func (r *Repo) key(rec *vector.Record) string { return r.keyPrefix + rec.ID() }

// EnsureIndex creates the index or verifies that its dimension matches the configured one.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("%w: check index: %w", domain.ErrIndex, err)
	}
	if exists {
		dim, err := r.store.IndexDimension(ctx, r.indexName, vectorField)
		if err != nil {
			return fmt.Errorf("%w: read index dimension: %w", domain.ErrIndex, err)
		}
		if dim != r.dims {
			return fmt.Errorf("%w: index %s has dimension %d, embedding produces %d",
				domain.ErrVectorDimMismatch, r.indexName, dim, r.dims)
		}
		return nil
	}

	def := db.NewIndex(r.indexName).
		Prefix(r.keyPrefix).
		Tag(vector.FieldDocumentID).
		Tag(vector.FieldOwnerID).
		Numeric(vector.FieldSeq).
		Numeric(vector.FieldCreatedAt).
		VectorHNSW(vectorField, r.dims, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruction).
		MustBuild()
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index: %w", domain.ErrIndex, err)
	}
	return nil
}

func (r *Repo) fields(rec *vector.Record) map[string]string {
	return map[string]string{
		vector.FieldDocumentID:   rec.DocumentID,
		vector.FieldDocumentName: rec.DocumentName,
		vector.FieldSeq:          strconv.Itoa(rec.Seq),
		vector.FieldText:         rec.Text,
		vector.FieldOwnerID:      rec.OwnerID,
		vector.FieldCreatedAt:    strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		vector.FieldSourceURL:    rec.SourceURL,
		vectorField:              vectorToBytes(rec.Vector),
	}
}

func (r *Repo) validate(rec *vector.Record) error {
	if len(rec.Vector) != r.dims {
		return fmt.Errorf("%w: record %s has %d dimensions, want %d",
			domain.ErrVectorDimMismatch, rec.ID(), len(rec.Vector), r.dims)
	}
	return nil
}

// UpsertBatch writes all records in one pipeline. On error the count is zero and the
// caller should retry record by record; writes are idempotent.
func (r *Repo) UpsertBatch(ctx context.Context, recs []vector.Record) (int, error) {
	items := make([]db.HashSetItem, len(recs))
	for i := range recs {
		if err := r.validate(&recs[i]); err != nil {
			return 0, err
		}
		items[i] = db.HashSetItem{Key: r.key(&recs[i]), Fields: r.fields(&recs[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("%w: batch upsert: %w", domain.ErrIndex, err)
	}
	return len(recs), nil
}

// Upsert writes a single record.
func (r *Repo) Upsert(ctx context.Context, rec vector.Record) error {
	if err := r.validate(&rec); err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key(&rec), r.fields(&rec)); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", domain.ErrIndex, rec.ID(), err)
	}
	return nil
}

// DeleteByFilter removes every record matching expr and returns how many were deleted.
func (r *Repo) DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error) {
	if expr.IsEmpty() {
		return 0, fmt.Errorf("%w: refusing to delete with an empty filter", domain.ErrValidation)
	}
	deleted := 0
	for range maxScanRounds {
		res, err := r.store.SearchList(ctx, &db.ListQuery{
			IndexName: r.indexName,
			Filters:   expr,
			Limit:     scanPage,
			NoContent: true,
		})
		if err != nil {
			return deleted, fmt.Errorf("%w: list for delete: %w", domain.ErrIndex, err)
		}
		if len(res.Entries) == 0 {
			return deleted, nil
		}
		keys := make([]string, len(res.Entries))
		for i, e := range res.Entries {
			keys[i] = e.Key
		}
		n, err := r.store.DelMulti(ctx, keys)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("%w: delete: %w", domain.ErrIndex, err)
		}
		if n == 0 {
			// Index lags behind the keyspace; nothing left that we can remove.
			return deleted, nil
		}
	}
	return deleted, nil
}

// Search returns the topK most similar records within expr, best first.
func (r *Repo) Search(ctx context.Context, vec []float32, topK int, expr filter.Expression) ([]vector.Hit, error) {
	if len(vec) != r.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrVectorDimMismatch, len(vec), r.dims)
	}
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  vectorField,
		Filters:      expr,
		Vector:       vec,
		K:            topK,
		ReturnFields: []string{vector.FieldDocumentID, vector.FieldSeq, vector.FieldText},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrIndex, err)
	}

	hits := make([]vector.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		seq, _ := strconv.Atoi(e.Fields[vector.FieldSeq])
		hits = append(hits, vector.Hit{
			DocumentID: e.Fields[vector.FieldDocumentID],
			Seq:        seq,
			Text:       e.Fields[vector.FieldText],
			Score:      e.Score,
		})
	}
	return hits, nil
}

// DocumentIDs lists the distinct document ids present in the index.
func (r *Repo) DocumentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for round := range maxScanRounds {
		res, err := r.store.SearchList(ctx, &db.ListQuery{
			IndexName: r.indexName,
			Offset:    round * scanPage,
			Limit:     scanPage,
			NoContent: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list records: %w", domain.ErrIndex, err)
		}
		for _, e := range res.Entries {
			docID, _, err := vector.ParseRecordID(strings.TrimPrefix(e.Key, r.keyPrefix))
			if err != nil {
				continue
			}
			if _, ok := seen[docID]; !ok {
				seen[docID] = struct{}{}
				ids = append(ids, docID)
			}
		}
		if len(res.Entries) < scanPage {
			break
		}
	}
	return ids, nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
