// Package deletion removes documents from all three stores.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/permission"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/metrics"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// MaxBulk bounds one DeleteMany call.
const MaxBulk = 100

// Store labels for deletion metrics.
const (
	storeVectors = "vectors"
	storeObjects = "objects"
	storeRecords = "records"
)

// Summary reports what a single document deletion removed.
type Summary struct {
	DocumentID         string
	Name               string
	TotalSegments      int
	SuccessfulSegments int
	VectorsDeleted     int
	ObjectDeleted      bool
	RecordDeleted      bool
	DeletedAt          time.Time
	Warnings           []string
}

// BulkSummary reports a multi-document deletion.
type BulkSummary struct {
	Requested      int
	Deleted        []Summary
	Skipped        []string
	VectorsDeleted int
	DeletedAt      time.Time
	Warnings       []string
}

// Service orchestrates the cascade: vectors, then the object, then the record.
// Every step is attempted even when an earlier one failed.
type Service struct {
	records Records
	vectors Vectors
	objects Objects
	now     func() time.Time
}

// New creates a deletion service.
func New(records Records, vectors Vectors, objects Objects) *Service {
	return &Service{records: records, vectors: vectors, objects: objects, now: time.Now}
}

// Delete removes one document owned by requester.
func (s *Service) Delete(ctx context.Context, id, requester string) (Summary, error) {
	doc, err := s.owned(ctx, id, requester)
	if err != nil {
		return Summary{}, err
	}

	sum := s.newSummary(&doc)
	n, err := s.vectors.DeleteByFilter(ctx, filter.MustNew(filter.Eq(vector.FieldDocumentID, id)))
	s.observe(ctx, storeVectors, id, err)
	if err != nil {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("vectors: %v", err))
	}
	sum.VectorsDeleted = n

	s.purgeObjectAndRecord(ctx, &doc, &sum)
	return sum, nil
}

// DeleteMany removes up to MaxBulk documents. Ids that are missing or not owned
// by requester are skipped, not reported as errors.
func (s *Service) DeleteMany(ctx context.Context, ids []string, requester string) (BulkSummary, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return BulkSummary{}, fmt.Errorf("%w: at least one document id is required", domain.ErrValidation)
	}
	if len(ids) > MaxBulk {
		return BulkSummary{}, fmt.Errorf("%w: at most %d documents per request", domain.ErrValidation, MaxBulk)
	}

	out := BulkSummary{Requested: len(ids), DeletedAt: s.now()}
	docs := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.owned(ctx, id, requester)
		switch {
		case err == nil:
			docs = append(docs, doc)
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPermission):
			out.Skipped = append(out.Skipped, id)
		default:
			return BulkSummary{}, err
		}
	}
	if len(docs) == 0 {
		return out, fmt.Errorf("%w: no documents found that you are allowed to delete", domain.ErrNotFound)
	}

	owned := make([]string, len(docs))
	for i := range docs {
		owned[i] = docs[i].ID()
	}
	n, err := s.vectors.DeleteByFilter(ctx, filter.MustNew(filter.In(vector.FieldDocumentID, owned...)))
	s.observe(ctx, storeVectors, "", err)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("vectors: %v", err))
	}
	out.VectorsDeleted = n

	for i := range docs {
		sum := s.newSummary(&docs[i])
		s.purgeObjectAndRecord(ctx, &docs[i], &sum)
		out.Deleted = append(out.Deleted, sum)
	}
	return out, nil
}

// DeleteAllForOwner removes every document owned by owner.
func (s *Service) DeleteAllForOwner(ctx context.Context, owner string) (BulkSummary, error) {
	if owner == "" {
		return BulkSummary{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	out := BulkSummary{DeletedAt: s.now()}

	n, err := s.vectors.DeleteByFilter(ctx, filter.MustNew(filter.Eq(vector.FieldOwnerID, owner)))
	s.observe(ctx, storeVectors, "", err)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("vectors: %v", err))
	}
	out.VectorsDeleted = n

	// Deleted records drop out of the listing, so the window only advances past failures.
	offset := 0
	for {
		page, err := s.records.List(ctx, record.ListQuery{UserID: owner, Offset: offset, Limit: record.MaxLimit})
		if err != nil {
			return out, fmt.Errorf("list documents: %w", err)
		}
		if len(page.Documents) == 0 {
			break
		}
		out.Requested += len(page.Documents)
		for i := range page.Documents {
			sum := s.newSummary(&page.Documents[i])
			if gone := s.purgeObjectAndRecord(ctx, &page.Documents[i], &sum); !gone {
				offset++
			}
			out.Deleted = append(out.Deleted, sum)
		}
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, id, requester string) (document.Document, error) {
	if id == "" {
		return document.Document{}, fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}
	doc, err := s.records.Get(ctx, id)
	if err != nil {
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	if permission.For(&doc, requester) != permission.Owner {
		return document.Document{}, fmt.Errorf("%w: only the owner can delete a document", domain.ErrPermission)
	}
	return doc, nil
}

func (s *Service) newSummary(doc *document.Document) Summary {
	return Summary{
		DocumentID:         doc.ID(),
		Name:               doc.Name(),
		TotalSegments:      doc.TotalSegments(),
		SuccessfulSegments: doc.SuccessfulSegments(),
		DeletedAt:          s.now(),
	}
}

// purgeObjectAndRecord reports whether the record is gone, including one removed concurrently.
func (s *Service) purgeObjectAndRecord(ctx context.Context, doc *document.Document, sum *Summary) bool {
	if key := doc.Object().Key; key != "" {
		err := s.objects.Delete(ctx, key)
		s.observe(ctx, storeObjects, doc.ID(), err)
		if err != nil {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("object: %v", err))
		} else {
			sum.ObjectDeleted = true
		}
	}

	gone := true
	err := s.records.Delete(ctx, doc.ID())
	switch {
	case err == nil:
		sum.RecordDeleted = true
	case errors.Is(err, domain.ErrNotFound):
		sum.Warnings = append(sum.Warnings, "record: already removed")
		err = nil
	default:
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("record: %v", err))
		gone = false
	}
	s.observe(ctx, storeRecords, doc.ID(), err)
	return gone
}

func (s *Service) observe(ctx context.Context, store, documentID string, err error) {
	metrics.DeletionsTotal.WithLabelValues(store, metrics.ResultLabel(err)).Inc()
	if err != nil {
		logger.FromContext(ctx).Warn("deletion step failed",
			zap.String("store", store),
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
