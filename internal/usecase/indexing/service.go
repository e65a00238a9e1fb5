// Package indexing drives a document from upload to a queryable set of vectors.
//
// A run walks pending -> processing -> completed|failed and persists the record at
// each checkpoint. Work that reaches another store registers a compensating step;
// on failure the steps run newest first, so nothing outlives a failed run.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/segment"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/logger"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Outcome messages.
const (
	MsgAllIndexed  = "All document segments were successfully indexed."
	MsgNoneIndexed = "Document indexing failed. No segments were saved."
	msgPartial     = "Partially indexed: %d out of %d segments were successfully indexed."
	msgAborted     = "Document was deleted while it was being indexed."
)

// Failure reasons persisted on the record.
const (
	ReasonSourceMissing = "source object missing"
	ReasonExtraction    = "extraction failed"
	ReasonInsufficient  = "insufficient content"
	ReasonNoSegments    = "no segments indexed"
)

// Defaults and bounds.
const (
	DefaultConcurrency   = 4
	MaxConcurrency       = 8
	DefaultUpsertTimeout = 120 * time.Second
)

// Rollback step names, also used as metric labels.
const (
	stepObject  = "object"
	stepVectors = "vectors"
)

// Run outcomes for metrics.
const (
	outcomeCompleted = "completed"
	outcomePartial   = "partial"
	outcomeFailed    = "failed"
	outcomeAborted   = "aborted"
)

// Config tunes a Service.
type Config struct {
	Concurrency    int
	UpsertTimeout  time.Duration
	MaxUploadBytes int64 // 0 disables the check
}

// Upload is a new binary with its initial metadata.
type Upload struct {
	OwnerID     string
	Name        string
	Description string
	Tags        []string
	ContentType string
	Data        []byte
}

// Outcome is the result of an indexing run.
type Outcome struct {
	Document document.Document
	Message  string
	Success  bool
}

// Service is the indexing orchestrator.
type Service struct {
	records   Records
	objects   Objects
	vectors   Vectors
	extractor Extractor
	embedder  Embedder
	remover   Remover
	cfg       Config
	newID     func() string
	now       func() time.Time
}

// New creates an indexing service.
func New(
	records Records, objects Objects, vectors Vectors,
	extractor Extractor, embedder Embedder, cfg Config,
) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	cfg.Concurrency = min(cfg.Concurrency, MaxConcurrency)
	if cfg.UpsertTimeout <= 0 {
		cfg.UpsertTimeout = DefaultUpsertTimeout
	}
	return &Service{
		records:   records,
		objects:   objects,
		vectors:   vectors,
		extractor: extractor,
		embedder:  embedder,
		cfg:       cfg,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// WithRemover enables Reindex.
func (s *Service) WithRemover(r Remover) *Service {
	s.remover = r
	return s
}

// Ingest stores a new binary, creates its pending record and indexes it.
func (s *Service) Ingest(ctx context.Context, up Upload) (Outcome, error) {
	if err := s.validateUpload(&up); err != nil {
		return Outcome{}, err
	}
	log := logger.FromContext(ctx)

	key := s.objects.NewKey(up.OwnerID, up.Name)
	obj, err := s.objects.Put(ctx, key, up.Data, up.ContentType)
	if err != nil {
		return Outcome{}, fmt.Errorf("upload binary: %w", err)
	}
	rb := &rollback{}
	rb.add(stepObject, s.deleteObject(key))

	doc, err := s.newDocument(&up, obj)
	if err == nil {
		err = s.records.Create(ctx, &doc)
	}
	if err != nil {
		if rbErr := rb.run(ctx, log); rbErr != nil {
			log.Error("rollback incomplete", zap.Error(rbErr))
		}
		return Outcome{}, fmt.Errorf("create record: %w", err)
	}

	return s.run(ctx, &doc, up.Data, rb)
}

// Run indexes an existing pending document.
func (s *Service) Run(ctx context.Context, documentID string) (Outcome, error) {
	doc, err := s.records.Get(ctx, documentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get document: %w", err)
	}
	if doc.Status() != document.StatusPending {
		return Outcome{}, fmt.Errorf("%w: document is %s, only pending documents can be indexed",
			domain.ErrValidation, doc.Status())
	}
	rb := &rollback{}
	rb.add(stepObject, s.deleteObject(doc.Object().Key))
	return s.run(ctx, &doc, nil, rb)
}

func (s *Service) validateUpload(up *Upload) error {
	up.Name = strings.TrimSpace(up.Name)
	switch {
	case up.OwnerID == "":
		return fmt.Errorf("%w: owner is required", domain.ErrValidation)
	case up.Name == "":
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	case len(up.Name) > document.MaxNameLength:
		return fmt.Errorf("%w: name too long (max %d)", domain.ErrValidation, document.MaxNameLength)
	case len(up.Data) == 0:
		return fmt.Errorf("%w: file is empty", domain.ErrValidation)
	case s.cfg.MaxUploadBytes > 0 && int64(len(up.Data)) > s.cfg.MaxUploadBytes:
		return fmt.Errorf("%w: file too large (max %d bytes)", domain.ErrValidation, s.cfg.MaxUploadBytes)
	case !s.extractor.Supports(up.ContentType):
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedContent, up.ContentType)
	}
	return nil
}

func (s *Service) newDocument(up *Upload, obj document.Object) (document.Document, error) {
	now := s.now()
	doc, err := document.New(s.newID(), up.OwnerID, up.Name, up.ContentType, int64(len(up.Data)), obj, now)
	if err != nil {
		return document.Document{}, err
	}
	var p document.Patch
	if up.Description != "" {
		p.Description = &up.Description
	}
	if len(up.Tags) > 0 {
		p.Tags = &up.Tags
	}
	if !p.IsEmpty() {
		if err := doc.Update(p, now); err != nil {
			return document.Document{}, err
		}
	}
	return doc, nil
}

func (s *Service) run(ctx context.Context, doc *document.Document, data []byte, rb *rollback) (Outcome, error) {
	start := time.Now()
	defer func() { metrics.IndexingDuration.Observe(time.Since(start).Seconds()) }()
	log := logger.FromContext(ctx).With(zap.String("document_id", doc.ID()))

	if err := doc.StartProcessing(s.now()); err != nil {
		return Outcome{}, err
	}
	if err := s.records.Save(ctx, doc); err != nil {
		return s.abortOrFail(ctx, log, doc, rb, err)
	}

	if data == nil {
		var err error
		data, err = s.objects.Get(ctx, doc.Object().Key)
		if errors.Is(err, domain.ErrObjectNotFound) {
			return s.fail(ctx, log, doc, nil, ReasonSourceMissing, fmt.Errorf("fetch binary: %w", err))
		}
		if err != nil {
			return s.fail(ctx, log, doc, rb, err.Error(), fmt.Errorf("fetch binary: %w", err))
		}
	}

	res, err := s.extractor.Extract(ctx, doc.ContentType(), data)
	if err != nil {
		return s.fail(ctx, log, doc, rb, ReasonExtraction, fmt.Errorf("extract text: %w", err))
	}
	doc.SetPageCount(res.Pages)
	if err := s.records.Save(ctx, doc); err != nil {
		return s.abortOrFail(ctx, log, doc, rb, err)
	}

	if len(segment.Clean(res.Text)) < segment.MinTextLength {
		return s.fail(ctx, log, doc, rb, ReasonInsufficient,
			fmt.Errorf("%w: %s", domain.ErrValidation, ReasonInsufficient))
	}

	segments := segment.Split(res.Text)
	if len(segments) == 0 {
		return s.fail(ctx, log, doc, rb, "segmentation produced no segments",
			fmt.Errorf("%w: segmentation produced no segments", domain.ErrInternal))
	}
	log.Info("document segmented", zap.Int("segments", len(segments)), zap.Int("pages", res.Pages))

	results := embedAll(ctx, s.embedder, segments, s.cfg.Concurrency)
	recs := s.buildRecords(log, doc, segments, results)

	rb.add(stepVectors, s.deleteVectors(doc.ID()))
	stored := 0
	if len(recs) > 0 {
		stored = s.upsert(ctx, log, recs)
	}
	metrics.SegmentsTotal.WithLabelValues("indexed").Add(float64(stored))
	metrics.SegmentsTotal.WithLabelValues("upsert_failed").Add(float64(len(recs) - stored))

	// The record may have been deleted while segments were embedded.
	if _, err := s.records.Get(ctx, doc.ID()); err != nil {
		return s.abortOrFail(ctx, log, doc, rb, err)
	}

	if err := doc.SetSegmentCounts(len(segments), stored); err != nil {
		return s.fail(ctx, log, doc, rb, err.Error(), fmt.Errorf("%w: %w", domain.ErrInternal, err))
	}
	if stored == 0 {
		cause := domain.ErrIndex
		if len(recs) == 0 {
			cause = domain.ErrEmbedding
		}
		out, err := s.fail(ctx, log, doc, rb, ReasonNoSegments, fmt.Errorf("%w: %s", cause, ReasonNoSegments))
		out.Message = MsgNoneIndexed
		return out, err
	}

	if err := doc.Complete(s.now()); err != nil {
		return s.fail(ctx, log, doc, rb, err.Error(), fmt.Errorf("%w: %w", domain.ErrInternal, err))
	}
	if err := s.records.Save(ctx, doc); err != nil {
		return s.abortOrFail(ctx, log, doc, rb, err)
	}

	msg, outcome := MsgAllIndexed, outcomeCompleted
	if stored < len(segments) {
		msg, outcome = fmt.Sprintf(msgPartial, stored, len(segments)), outcomePartial
	}
	metrics.DocumentsIndexedTotal.WithLabelValues(outcome).Inc()
	log.Info("document indexed",
		zap.Int("segments", len(segments)),
		zap.Int("indexed", stored),
		zap.Duration("duration", time.Since(start)),
	)
	return Outcome{Document: *doc, Message: msg, Success: true}, nil
}

func (s *Service) buildRecords(
	log *zap.Logger, doc *document.Document, segments []string, results []embedded,
) []vector.Record {
	now := s.now()
	recs := make([]vector.Record, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			metrics.SegmentsTotal.WithLabelValues("embed_failed").Inc()
			log.Warn("segment embedding failed", zap.Int("seq", r.seq), zap.Error(r.err))
			continue
		}
		text, cut := vector.Truncate(segments[r.seq])
		if cut {
			metrics.SegmentsTotal.WithLabelValues("truncated").Inc()
			log.Warn("segment text truncated",
				zap.Int("seq", r.seq),
				zap.Int("length", len(segments[r.seq])),
				zap.Int("max", vector.MaxTextLength),
			)
		}
		recs = append(recs, vector.Record{
			DocumentID:   doc.ID(),
			DocumentName: doc.Name(),
			Seq:          r.seq,
			Text:         text,
			OwnerID:      doc.OwnerID(),
			CreatedAt:    now,
			SourceURL:    doc.Object().URL,
			Vector:       r.vector,
		})
	}
	return recs
}

// upsert writes recs in one batch under the upsert deadline. If the batch fails
// every record is retried alone; the count is whatever landed.
func (s *Service) upsert(ctx context.Context, log *zap.Logger, recs []vector.Record) int {
	bctx, cancel := context.WithTimeout(ctx, s.cfg.UpsertTimeout)
	n, err := s.vectors.UpsertBatch(bctx, recs)
	cancel()
	if err == nil {
		return n
	}
	log.Warn("batch upsert failed, inserting records one by one",
		zap.Int("records", len(recs)), zap.Error(err))

	stored := 0
	for i := range recs {
		if err := s.vectors.Upsert(ctx, recs[i]); err != nil {
			log.Warn("record upsert failed", zap.Int("seq", recs[i].Seq), zap.Error(err))
			continue
		}
		stored++
	}
	return stored
}

// abortOrFail ends a run whose record vanished, or fails it for any other error.
func (s *Service) abortOrFail(
	ctx context.Context, log *zap.Logger, doc *document.Document, rb *rollback, err error,
) (Outcome, error) {
	if !errors.Is(err, domain.ErrNotFound) {
		return s.fail(ctx, log, doc, rb, err.Error(), err)
	}
	log.Warn("document deleted during indexing, reaping written data", zap.Strings("steps", rb.names()))
	if rbErr := rb.run(ctx, log); rbErr != nil {
		log.Error("rollback incomplete", zap.Error(rbErr))
	}
	metrics.DocumentsIndexedTotal.WithLabelValues(outcomeAborted).Inc()
	return Outcome{Document: *doc, Message: msgAborted}, fmt.Errorf("document deleted during indexing: %w", err)
}

// fail persists the failed status and runs rb, which may be nil.
func (s *Service) fail(
	ctx context.Context, log *zap.Logger, doc *document.Document, rb *rollback, reason string, cause error,
) (Outcome, error) {
	if err := doc.Fail(reason, s.now()); err != nil {
		log.Error("cannot mark document failed", zap.Error(err))
	} else if err := s.records.Save(context.WithoutCancel(ctx), doc); err != nil {
		log.Error("persist failed status", zap.Error(err))
	}
	if rb != nil {
		if err := rb.run(ctx, log); err != nil {
			log.Error("rollback incomplete", zap.Error(err))
		}
	}
	metrics.DocumentsIndexedTotal.WithLabelValues(outcomeFailed).Inc()
	log.Warn("indexing failed", zap.String("reason", reason), zap.Error(cause))
	return Outcome{Document: *doc, Message: reason}, cause
}

func (s *Service) deleteObject(key string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.objects.Delete(ctx, key)
	}
}

func (s *Service) deleteVectors(documentID string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.vectors.DeleteByFilter(ctx, filter.MustNew(filter.Eq(vector.FieldDocumentID, documentID)))
		return err
	}
}
