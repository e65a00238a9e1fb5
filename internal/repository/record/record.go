// Package record holds the storage representation shared by the metadata record store drivers.
package record

import (
	"fmt"
	"slices"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// DefaultLimit and MaxLimit bound List page sizes.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Scope selects which documents a listing covers, relative to the listing user.
type Scope string

// Listing scopes.
const (
	ScopeOwned  Scope = "owned"  // uploaded by the user
	ScopeShared Scope = "shared" // explicitly shared with the user
	ScopePublic Scope = "public" // public documents of any owner
	ScopeAll    Scope = "all"    // any of the above
)

// ParseScope validates a scope name. The empty string is ScopeOwned.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case "":
		return ScopeOwned, nil
	case ScopeOwned, ScopeShared, ScopePublic, ScopeAll:
		return sc, nil
	default:
		return "", fmt.Errorf("%w: invalid type %q (use owned, shared, public or all)", domain.ErrValidation, s)
	}
}

// ListQuery filters the documents visible to UserID. An empty Status matches all;
// an empty Scope is ScopeOwned.
type ListQuery struct {
	UserID string
	Scope  Scope
	Status document.Status
	Offset int
	Limit  int
}

// Validate checks the fields every driver relies on.
func (q ListQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("%w: user is required", domain.ErrValidation)
	}
	if _, err := ParseScope(string(q.Scope)); err != nil {
		return err
	}
	return nil
}

// Normalize clamps the page window and defaults the scope.
func (q ListQuery) Normalize() ListQuery {
	if q.Scope == "" {
		q.Scope = ScopeOwned
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Page is one window of a listing, newest first.
type Page struct {
	Documents []document.Document
	Total     int
}

// ShareDTO is the stored form of a share.
type ShareDTO struct {
	UserID     string `json:"user_id" bson:"user_id"`
	Permission string `json:"permission" bson:"permission"`
	SharedAt   int64  `json:"shared_at" bson:"shared_at"`
}

// DTO is the stored form of a document. Times are unix milliseconds.
type DTO struct {
	ID                 string     `json:"id" bson:"_id"`
	OwnerID            string     `json:"owner_id" bson:"owner_id"`
	Name               string     `json:"name" bson:"name"`
	Description        string     `json:"description,omitempty" bson:"description,omitempty"`
	Tags               []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	IsPublic           bool       `json:"is_public" bson:"is_public"`
	Shares             []ShareDTO `json:"shares,omitempty" bson:"shares,omitempty"`
	Visibility         string     `json:"visibility" bson:"visibility"`
	Size               int64      `json:"size" bson:"size"`
	PageCount          int        `json:"page_count" bson:"page_count"`
	ContentType        string     `json:"content_type" bson:"content_type"`
	ObjectKey          string     `json:"object_key" bson:"object_key"`
	ObjectURL          string     `json:"object_url" bson:"object_url"`
	ObjectBytes        int64      `json:"object_bytes" bson:"object_bytes"`
	ObjectFormat       string     `json:"object_format" bson:"object_format"`
	Status             string     `json:"status" bson:"status"`
	TotalSegments      int        `json:"total_segments" bson:"total_segments"`
	SuccessfulSegments int        `json:"successful_segments" bson:"successful_segments"`
	IsIndexed          bool       `json:"is_indexed" bson:"is_indexed"`
	ErrorReason        string     `json:"error_reason,omitempty" bson:"error_reason,omitempty"`
	CreatedAt          int64      `json:"created_at" bson:"created_at"`
	UpdatedAt          int64      `json:"updated_at" bson:"updated_at"`
	IndexedAt          int64      `json:"indexed_at,omitempty" bson:"indexed_at,omitempty"`
}

// FromDocument flattens a document for storage.
func FromDocument(d *document.Document) DTO {
	s := d.State()
	shares := make([]ShareDTO, len(s.Shares))
	for i, sh := range s.Shares {
		shares[i] = ShareDTO{UserID: sh.UserID, Permission: string(sh.Permission), SharedAt: toMillis(sh.SharedAt)}
	}
	return DTO{
		ID:                 s.ID,
		OwnerID:            s.OwnerID,
		Name:               s.Name,
		Description:        s.Description,
		Tags:               s.Tags,
		IsPublic:           s.IsPublic,
		Shares:             shares,
		Visibility:         visibility(s.IsPublic),
		Size:               s.Size,
		PageCount:          s.PageCount,
		ContentType:        s.ContentType,
		ObjectKey:          s.Object.Key,
		ObjectURL:          s.Object.URL,
		ObjectBytes:        s.Object.Bytes,
		ObjectFormat:       s.Object.Format,
		Status:             string(s.Status),
		TotalSegments:      s.TotalSegments,
		SuccessfulSegments: s.SuccessfulSegments,
		IsIndexed:          s.IsIndexed,
		ErrorReason:        s.ErrorReason,
		CreatedAt:          toMillis(s.CreatedAt),
		UpdatedAt:          toMillis(s.UpdatedAt),
		IndexedAt:          toMillis(s.IndexedAt),
	}
}

// Document hydrates the aggregate.
func (d DTO) Document() document.Document {
	var shares []document.Share
	for _, sh := range d.Shares {
		shares = append(shares, document.Share{
			UserID:     sh.UserID,
			Permission: document.Permission(sh.Permission),
			SharedAt:   fromMillis(sh.SharedAt),
		})
	}
	return document.Reconstruct(document.State{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		Tags:        d.Tags,
		IsPublic:    d.IsPublic,
		Shares:      shares,
		Size:        d.Size,
		PageCount:   d.PageCount,
		ContentType: d.ContentType,
		Object: document.Object{
			Key:    d.ObjectKey,
			URL:    d.ObjectURL,
			Bytes:  d.ObjectBytes,
			Format: d.ObjectFormat,
		},
		Status:             document.Status(d.Status),
		TotalSegments:      d.TotalSegments,
		SuccessfulSegments: d.SuccessfulSegments,
		IsIndexed:          d.IsIndexed,
		ErrorReason:        d.ErrorReason,
		CreatedAt:          fromMillis(d.CreatedAt),
		UpdatedAt:          fromMillis(d.UpdatedAt),
		IndexedAt:          fromMillis(d.IndexedAt),
	})
}

// Visibility values. Stored as a string so tag indexes can match it.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

func visibility(public bool) string {
	if public {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// SharedWith returns the user ids of the grants.
func (d DTO) SharedWith() []string {
	ids := make([]string, 0, len(d.Shares))
	for _, sh := range d.Shares {
		if !slices.Contains(ids, sh.UserID) {
			ids = append(ids, sh.UserID)
		}
	}
	return ids
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
