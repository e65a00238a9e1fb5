package document

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// Field limits.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 500
	MaxTagLength         = 50
	MaxTags              = 20
)

// Document is the aggregate tracking one uploaded binary through indexing.
type Document struct {
	id          string
	ownerID     string
	name        string
	description string
	tags        []string
	isPublic    bool
	shares      []Share

	size        int64
	pageCount   int
	contentType string
	object      Object

	status             Status
	totalSegments      int
	successfulSegments int
	isIndexed          bool
	errorReason        string

	createdAt time.Time
	updatedAt time.Time
	indexedAt time.Time
}

// Object describes where the binary lives.
type Object struct {
	Key    string
	URL    string
	Bytes  int64
	Format string
}

// New validates and creates a pending Document.
func New(id, ownerID, name, contentType string, size int64, obj Object, now time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("%w: document ID is required", domain.ErrValidation)
	}
	if ownerID == "" {
		return Document{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if err := validateName(name); err != nil {
		return Document{}, err
	}
	if size <= 0 {
		return Document{}, fmt.Errorf("%w: document is empty", domain.ErrValidation)
	}
	if obj.Key == "" {
		return Document{}, fmt.Errorf("%w: object key is required", domain.ErrValidation)
	}

	return Document{
		id:          id,
		ownerID:     ownerID,
		name:        name,
		size:        size,
		contentType: contentType,
		object:      obj,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name too long (max %d)", domain.ErrValidation, MaxNameLength)
	}
	return nil
}

func validateDescription(d string) error {
	if len(d) > MaxDescriptionLength {
		return fmt.Errorf("%w: description too long (max %d)", domain.ErrValidation, MaxDescriptionLength)
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("%w: too many tags (max %d)", domain.ErrValidation, MaxTags)
	}
	for _, t := range tags {
		if t == "" {
			return fmt.Errorf("%w: empty tag", domain.ErrValidation)
		}
		if len(t) > MaxTagLength {
			return fmt.Errorf("%w: tag %q too long (max %d)", domain.ErrValidation, t, MaxTagLength)
		}
	}
	return nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// OwnerID returns the uploader.
func (d *Document) OwnerID() string { return d.ownerID }

// Name returns the display name.
func (d *Document) Name() string { return d.name }

// Description returns the free-form description.
func (d *Document) Description() string { return d.description }

// Tags returns a copy of the tags.
func (d *Document) Tags() []string { return slices.Clone(d.tags) }

// IsPublic reports whether any user may read the document.
func (d *Document) IsPublic() bool { return d.isPublic }

// Shares returns a copy of the explicit grants.
func (d *Document) Shares() []Share { return slices.Clone(d.shares) }

// Size returns the binary size in bytes.
func (d *Document) Size() int64 { return d.size }

// PageCount returns the page count reported by extraction.
func (d *Document) PageCount() int { return d.pageCount }

// ContentType returns the MIME type of the binary.
func (d *Document) ContentType() string { return d.contentType }

// Object returns the storage descriptor.
func (d *Document) Object() Object { return d.object }

// Status returns the lifecycle status.
func (d *Document) Status() Status { return d.status }

// TotalSegments returns the number of segments produced.
func (d *Document) TotalSegments() int { return d.totalSegments }

// SuccessfulSegments returns the number of segments persisted in the vector index.
func (d *Document) SuccessfulSegments() int { return d.successfulSegments }

// IsIndexed reports whether the document can be queried.
func (d *Document) IsIndexed() bool { return d.isIndexed }

// ErrorReason returns the terminal failure reason.
func (d *Document) ErrorReason() string { return d.errorReason }

// CreatedAt returns the creation time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last modification time.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// IndexedAt returns the completion time, zero until completed.
func (d *Document) IndexedAt() time.Time { return d.indexedAt }

// StartProcessing moves a pending document to processing.
func (d *Document) StartProcessing(now time.Time) error {
	if err := d.transition(StatusProcessing); err != nil {
		return err
	}
	d.updatedAt = now
	return nil
}

// SetPageCount records the page count reported by extraction.
func (d *Document) SetPageCount(n int) {
	if n >= 0 {
		d.pageCount = n
	}
}

// SetSegmentCounts records how many segments were produced and how many landed in the index.
func (d *Document) SetSegmentCounts(total, successful int) error {
	if total < 0 || successful < 0 {
		return fmt.Errorf("%w: negative segment count", domain.ErrValidation)
	}
	if successful > total {
		return fmt.Errorf("%w: successful segments %d exceed total %d",
			domain.ErrValidation, successful, total)
	}
	d.totalSegments = total
	d.successfulSegments = successful
	return nil
}

// Complete marks the document queryable. Requires at least one indexed segment.
func (d *Document) Complete(now time.Time) error {
	if d.successfulSegments == 0 {
		return fmt.Errorf("%w: cannot complete without indexed segments", domain.ErrValidation)
	}
	if err := d.transition(StatusCompleted); err != nil {
		return err
	}
	d.isIndexed = true
	d.indexedAt = now
	d.updatedAt = now
	d.errorReason = ""
	return nil
}

// Fail moves the document to failed with a reason.
func (d *Document) Fail(reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: failure reason is required", domain.ErrValidation)
	}
	if err := d.transition(StatusFailed); err != nil {
		return err
	}
	d.isIndexed = false
	d.errorReason = reason
	d.updatedAt = now
	return nil
}

func (d *Document) transition(to Status) error {
	if !d.status.CanTransitionTo(to) {
		return fmt.Errorf("%w: cannot move document from %s to %s", domain.ErrValidation, d.status, to)
	}
	d.status = to
	return nil
}

// Patch carries optional metadata changes. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Description *string
	Tags        *[]string
	IsPublic    *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.IsPublic == nil
}

// Update applies a validated metadata patch.
func (d *Document) Update(p Patch, now time.Time) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		if err := validateTags(*p.Tags); err != nil {
			return err
		}
	}

	if p.Name != nil {
		d.name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		d.description = strings.TrimSpace(*p.Description)
	}
	if p.Tags != nil {
		d.tags = slices.Clone(*p.Tags)
	}
	if p.IsPublic != nil {
		d.isPublic = *p.IsPublic
	}
	d.updatedAt = now
	return nil
}

// Share grants userID access, replacing any previous grant for that user.
func (d *Document) Share(userID string, perm Permission, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", domain.ErrValidation)
	}
	if userID == d.ownerID {
		return fmt.Errorf("%w: cannot share a document with its owner", domain.ErrValidation)
	}
	if !perm.Valid() {
		return fmt.Errorf("%w: permission must be read or write", domain.ErrValidation)
	}

	for i := range d.shares {
		if d.shares[i].UserID == userID {
			d.shares[i].Permission = perm
			d.shares[i].SharedAt = now
			d.updatedAt = now
			return nil
		}
	}
	d.shares = append(d.shares, Share{UserID: userID, Permission: perm, SharedAt: now})
	d.updatedAt = now
	return nil
}

// Unshare revokes the grant for userID.
func (d *Document) Unshare(userID string, now time.Time) error {
	idx := slices.IndexFunc(d.shares, func(s Share) bool { return s.UserID == userID })
	if idx < 0 {
		return fmt.Errorf("%w: document is not shared with %s", domain.ErrNotFound, userID)
	}
	d.shares = slices.Delete(d.shares, idx, idx+1)
	d.updatedAt = now
	return nil
}

// ShareFor returns the grant for userID, if any.
func (d *Document) ShareFor(userID string) (Share, bool) {
	for _, s := range d.shares {
		if s.UserID == userID {
			return s, true
		}
	}
	return Share{}, false
}

// State is the flat representation used by storage adapters.
type State struct {
	ID                 string
	OwnerID            string
	Name               string
	Description        string
	Tags               []string
	IsPublic           bool
	Shares             []Share
	Size               int64
	PageCount          int
	ContentType        string
	Object             Object
	Status             Status
	TotalSegments      int
	SuccessfulSegments int
	IsIndexed          bool
	ErrorReason        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	IndexedAt          time.Time
}

// State snapshots the document.
func (d *Document) State() State {
	return State{
		ID:                 d.id,
		OwnerID:            d.ownerID,
		Name:               d.name,
		Description:        d.description,
		Tags:               slices.Clone(d.tags),
		IsPublic:           d.isPublic,
		Shares:             slices.Clone(d.shares),
		Size:               d.size,
		PageCount:          d.pageCount,
		ContentType:        d.contentType,
		Object:             d.object,
		Status:             d.status,
		TotalSegments:      d.totalSegments,
		SuccessfulSegments: d.successfulSegments,
		IsIndexed:          d.isIndexed,
		ErrorReason:        d.errorReason,
		CreatedAt:          d.createdAt,
		UpdatedAt:          d.updatedAt,
		IndexedAt:          d.indexedAt,
	}
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(s State) Document {
	return Document{
		id:                 s.ID,
		ownerID:            s.OwnerID,
		name:               s.Name,
		description:        s.Description,
		tags:               s.Tags,
		isPublic:           s.IsPublic,
		shares:             s.Shares,
		size:               s.Size,
		pageCount:          s.PageCount,
		contentType:        s.ContentType,
		object:             s.Object,
		status:             s.Status,
		totalSegments:      s.TotalSegments,
		successfulSegments: s.SuccessfulSegments,
		isIndexed:          s.IsIndexed,
		errorReason:        s.ErrorReason,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
		indexedAt:          s.IndexedAt,
	}
}
