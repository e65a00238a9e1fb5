// Package catalog serves document metadata: lookup, listing, edits and sharing.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/permission"
	"github.com/kailas-cloud/docrag/internal/repository/record"
)

// ListFilter selects a window of the documents a requester can see.
// Scope is owned, shared, public or all (empty means owned); an empty Status matches all.
// Page is 1-based; zero Page and Limit take defaults.
type ListFilter struct {
	Scope  string
	Status string
	Page   int
	Limit  int
}

// Page is one window of a listing.
type Page struct {
	Documents []document.Document
	Scope     record.Scope
	Total     int
	Page      int
	Limit     int
}

// Download points at a document binary.
type Download struct {
	URL         string
	Name        string
	ContentType string
	Size        int64
}

// Service handles document metadata.
type Service struct {
	records Records
	urls    URLResolver
	now     func() time.Time
}

// New creates a catalog service.
func New(records Records, urls URLResolver) *Service {
	return &Service{records: records, urls: urls, now: time.Now}
}

// Get returns a document the requester can read.
func (s *Service) Get(ctx context.Context, id, requester string) (document.Document, error) {
	doc, _, err := s.load(ctx, id, requester, permission.Read)
	return doc, err
}

// Info returns an indexed document. Documents still pending, processing or failed
// are reported as a validation error.
func (s *Service) Info(ctx context.Context, id, requester string) (document.Document, error) {
	doc, _, err := s.load(ctx, id, requester, permission.Read)
	if err != nil {
		return document.Document{}, err
	}
	if doc.Status() != document.StatusCompleted {
		return document.Document{}, fmt.Errorf("%w: document is not indexed yet (status %s)",
			domain.ErrValidation, doc.Status())
	}
	return doc, nil
}

// List pages through the documents visible to requester under f.Scope, newest first.
func (s *Service) List(ctx context.Context, requester string, f ListFilter) (Page, error) {
	if requester == "" {
		return Page{}, fmt.Errorf("%w: requester is required", domain.ErrValidation)
	}
	scope, err := record.ParseScope(f.Scope)
	if err != nil {
		return Page{}, err
	}
	var st document.Status
	if f.Status != "" {
		if st, err = document.ParseStatus(f.Status); err != nil {
			return Page{}, err
		}
	}
	page, limit := f.Page, f.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = record.DefaultLimit
	}
	if page < 1 {
		return Page{}, fmt.Errorf("%w: page must be positive", domain.ErrValidation)
	}
	if limit < 1 || limit > record.MaxLimit {
		return Page{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, record.MaxLimit)
	}

	res, err := s.records.List(ctx, record.ListQuery{
		UserID: requester,
		Scope:  scope,
		Status: st,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list documents: %w", err)
	}
	return Page{Documents: res.Documents, Scope: scope, Total: res.Total, Page: page, Limit: limit}, nil
}

// Update applies a metadata patch. Writers may edit; only the owner may change visibility.
func (s *Service) Update(ctx context.Context, id, requester string, p document.Patch) (document.Document, error) {
	doc, level, err := s.load(ctx, id, requester, permission.Write)
	if err != nil {
		return document.Document{}, err
	}
	if p.IsPublic != nil && level != permission.Owner {
		return document.Document{}, fmt.Errorf("%w: only the owner can change visibility", domain.ErrPermission)
	}
	if err := doc.Update(p, s.now()); err != nil {
		return document.Document{}, err
	}
	if err := s.records.Save(ctx, &doc); err != nil {
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// Share grants userID read or write access. Owner only.
func (s *Service) Share(
	ctx context.Context, id, requester, userID string, perm document.Permission,
) (document.Document, error) {
	doc, _, err := s.load(ctx, id, requester, permission.Owner)
	if err != nil {
		return document.Document{}, err
	}
	if err := doc.Share(userID, perm, s.now()); err != nil {
		return document.Document{}, err
	}
	if err := s.records.Save(ctx, &doc); err != nil {
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// Unshare revokes userID's grant. Owner only.
func (s *Service) Unshare(ctx context.Context, id, requester, userID string) (document.Document, error) {
	doc, _, err := s.load(ctx, id, requester, permission.Owner)
	if err != nil {
		return document.Document{}, err
	}
	if err := doc.Unshare(userID, s.now()); err != nil {
		return document.Document{}, err
	}
	if err := s.records.Save(ctx, &doc); err != nil {
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// Download resolves a durable URL for the binary.
func (s *Service) Download(ctx context.Context, id, requester string) (Download, error) {
	doc, _, err := s.load(ctx, id, requester, permission.Read)
	if err != nil {
		return Download{}, err
	}
	url, err := s.urls.URL(ctx, doc.Object().Key)
	if err != nil {
		return Download{}, fmt.Errorf("resolve download url: %w", err)
	}
	return Download{URL: url, Name: doc.Name(), ContentType: doc.ContentType(), Size: doc.Size()}, nil
}

func (s *Service) load(
	ctx context.Context, id, requester string, required permission.Level,
) (document.Document, permission.Level, error) {
	if id == "" {
		return document.Document{}, permission.None, fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}
	doc, err := s.records.Get(ctx, id)
	if err != nil {
		return document.Document{}, permission.None, fmt.Errorf("get document: %w", err)
	}
	level := permission.For(&doc, requester)
	if !level.Allows(required) {
		return document.Document{}, level, fmt.Errorf("%w: %s access required", domain.ErrPermission, required)
	}
	return doc, level, nil
}
