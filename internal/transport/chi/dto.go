package chi

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/permission"
	"github.com/kailas-cloud/docrag/internal/usecase/answer"
	"github.com/kailas-cloud/docrag/internal/usecase/deletion"
)

type envelope struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *errorDTO `json:"error,omitempty"`
}

type errorDTO struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

type shareDTO struct {
	UserID     string    `json:"user_id"`
	Permission string    `json:"permission"`
	SharedAt   time.Time `json:"shared_at"`
}

type documentDTO struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"owner_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Tags               []string   `json:"tags"`
	IsPublic           bool       `json:"is_public"`
	Access             string     `json:"access"`
	SharedWith         []shareDTO `json:"shared_with,omitempty"`
	Size               int64      `json:"size"`
	PageCount          int        `json:"page_count"`
	ContentType        string     `json:"content_type"`
	Format             string     `json:"format,omitempty"`
	Status             string     `json:"status"`
	TotalSegments      int        `json:"total_segments"`
	SuccessfulSegments int        `json:"successful_segments"`
	IsIndexed          bool       `json:"is_indexed"`
	ErrorReason        string     `json:"error_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	IndexedAt          *time.Time `json:"indexed_at,omitempty"`
}

type listDTO struct {
	Documents []documentDTO `json:"documents"`
	Type      string        `json:"type"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	Limit     int           `json:"limit"`
}

type downloadDTO struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type sourceDTO struct {
	Rank  int     `json:"rank"`
	Seq   int     `json:"segment"`
	Score float64 `json:"score"`
}

type answerDTO struct {
	Answer       string      `json:"answer"`
	DocumentID   string      `json:"document_id"`
	DocumentName string      `json:"document_name"`
	Sources      []sourceDTO `json:"sources"`
}

type summaryDTO struct {
	DocumentID         string    `json:"document_id"`
	Name               string    `json:"name"`
	TotalSegments      int       `json:"total_segments"`
	SuccessfulSegments int       `json:"successful_segments"`
	VectorsDeleted     int       `json:"vectors_deleted"`
	ObjectDeleted      bool      `json:"object_deleted"`
	RecordDeleted      bool      `json:"record_deleted"`
	DeletedAt          time.Time `json:"deleted_at"`
	Warnings           []string  `json:"warnings,omitempty"`
}

type bulkDTO struct {
	Requested      int          `json:"requested"`
	Deleted        []summaryDTO `json:"deleted"`
	Skipped        []string     `json:"skipped,omitempty"`
	VectorsDeleted int          `json:"vectors_deleted"`
	DeletedAt      time.Time    `json:"deleted_at"`
	Warnings       []string     `json:"warnings,omitempty"`
}

type healthDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type updateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
}

type shareRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

type askRequest struct {
	Query string `json:"query"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// documentToDTO renders a document. Share grants are only shown to the owner.
func documentToDTO(d *document.Document, requester string) documentDTO {
	out := documentDTO{
		ID:                 d.ID(),
		OwnerID:            d.OwnerID(),
		Name:               d.Name(),
		Description:        d.Description(),
		Tags:               d.Tags(),
		IsPublic:           d.IsPublic(),
		Access:             permission.For(d, requester).String(),
		Size:               d.Size(),
		PageCount:          d.PageCount(),
		ContentType:        d.ContentType(),
		Format:             d.Object().Format,
		Status:             string(d.Status()),
		TotalSegments:      d.TotalSegments(),
		SuccessfulSegments: d.SuccessfulSegments(),
		IsIndexed:          d.IsIndexed(),
		ErrorReason:        d.ErrorReason(),
		CreatedAt:          d.CreatedAt(),
		UpdatedAt:          d.UpdatedAt(),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if at := d.IndexedAt(); !at.IsZero() {
		out.IndexedAt = &at
	}
	if requester == d.OwnerID() {
		for _, s := range d.Shares() {
			out.SharedWith = append(out.SharedWith, shareDTO{
				UserID:     s.UserID,
				Permission: string(s.Permission),
				SharedAt:   s.SharedAt,
			})
		}
	}
	return out
}

func answerToDTO(a *answer.Answer) answerDTO {
	sources := make([]sourceDTO, len(a.Sources))
	for i, s := range a.Sources {
		sources[i] = sourceDTO{Rank: s.Rank, Seq: s.Seq, Score: s.Score}
	}
	return answerDTO{
		Answer:       a.Text,
		DocumentID:   a.Document.ID(),
		DocumentName: a.Document.Name(),
		Sources:      sources,
	}
}

func summaryToDTO(s *deletion.Summary) summaryDTO {
	return summaryDTO{
		DocumentID:         s.DocumentID,
		Name:               s.Name,
		TotalSegments:      s.TotalSegments,
		SuccessfulSegments: s.SuccessfulSegments,
		VectorsDeleted:     s.VectorsDeleted,
		ObjectDeleted:      s.ObjectDeleted,
		RecordDeleted:      s.RecordDeleted,
		DeletedAt:          s.DeletedAt,
		Warnings:           s.Warnings,
	}
}

func bulkToDTO(b *deletion.BulkSummary) bulkDTO {
	deleted := make([]summaryDTO, len(b.Deleted))
	for i := range b.Deleted {
		deleted[i] = summaryToDTO(&b.Deleted[i])
	}
	return bulkDTO{
		Requested:      b.Requested,
		Deleted:        deleted,
		Skipped:        b.Skipped,
		VectorsDeleted: b.VectorsDeleted,
		DeletedAt:      b.DeletedAt,
		Warnings:       b.Warnings,
	}
}

func uploadName(name, filename string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return filepath.Base(filename)
}

// parseTags accepts repeated fields and comma-separated lists.
func parseTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

var extensionTypes = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// uploadContentType trusts the part header unless it is missing or generic,
// then falls back to the file extension.
func uploadContentType(header, filename string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}
