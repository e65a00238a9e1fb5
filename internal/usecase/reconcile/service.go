// Package reconcile removes vectors whose metadata record no longer exists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/logger"
)

// Report summarizes one pass.
type Report struct {
	Scanned        int
	Orphans        []string
	VectorsDeleted int
	Errors         []string
	Duration       time.Duration
}

// Service runs reconciliation passes.
type Service struct {
	records Records
	vectors Vectors
}

// New creates a reconciler.
func New(records Records, vectors Vectors) *Service {
	return &Service{records: records, vectors: vectors}
}

// Run checks every document id present in the index against the record store.
// Lookup failures other than not-found leave the vectors alone.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	ids, err := s.vectors.DocumentIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list indexed documents: %w", err)
	}

	rep := Report{Scanned: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		_, err := s.records.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}

		rep.Orphans = append(rep.Orphans, id)
		n, err := s.vectors.DeleteByFilter(ctx, filter.MustNew(filter.Eq(vector.FieldDocumentID, id)))
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		rep.VectorsDeleted += n
		log.Info("orphaned vectors reaped", zap.String("document_id", id), zap.Int("vectors", n))
	}

	rep.Duration = time.Since(start)
	return rep, nil
}
