package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/permission"
	"github.com/kailas-cloud/docrag/internal/logger"
)

// Reindex indexes the binary of an existing document again under a new document id.
// The binary is copied to a fresh key so the two documents never share storage.
// The old document is deleted only after the new run succeeds.
func (s *Service) Reindex(ctx context.Context, documentID, requester string) (Outcome, error) {
	if s.remover == nil {
		return Outcome{}, fmt.Errorf("%w: reindexing is not configured", domain.ErrInternal)
	}
	old, err := s.records.Get(ctx, documentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get document: %w", err)
	}
	if !permission.For(&old, requester).Allows(permission.Write) {
		return Outcome{}, fmt.Errorf("%w: write access required to reindex", domain.ErrPermission)
	}
	if old.Status() == document.StatusProcessing {
		return Outcome{}, fmt.Errorf("%w: document is being indexed", domain.ErrValidation)
	}
	log := logger.FromContext(ctx).With(zap.String("previous_document_id", old.ID()))
	ctx = logger.ContextWithLogger(ctx, log)

	key := s.objects.NewKey(old.OwnerID(), old.Name())
	obj, err := s.objects.Copy(ctx, old.Object().Key, key)
	if err != nil {
		return Outcome{}, fmt.Errorf("copy binary: %w", err)
	}
	rb := &rollback{}
	rb.add(stepObject, s.deleteObject(key))

	doc, err := document.New(s.newID(), old.OwnerID(), old.Name(), old.ContentType(), old.Size(), obj, s.now())
	if err == nil {
		doc = carryMetadata(&doc, &old)
		err = s.records.Create(ctx, &doc)
	}
	if err != nil {
		if rbErr := rb.run(ctx, log); rbErr != nil {
			log.Error("rollback incomplete", zap.Error(rbErr))
		}
		return Outcome{}, fmt.Errorf("create record: %w", err)
	}

	out, err := s.run(ctx, &doc, nil, rb)
	if err != nil {
		return out, err
	}

	if _, err := s.remover.Delete(ctx, old.ID(), old.OwnerID()); err != nil {
		log.Warn("previous document not deleted after reindex", zap.Error(err))
	}
	return out, nil
}

// carryMetadata copies user-managed fields from src onto a freshly created document.
func carryMetadata(dst, src *document.Document) document.Document {
	st := dst.State()
	st.Description = src.Description()
	st.Tags = src.Tags()
	st.IsPublic = src.IsPublic()
	st.Shares = src.Shares()
	return document.Reconstruct(st)
}
