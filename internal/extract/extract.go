// Package extract turns uploaded binaries into plain text.
package extract

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// Result is the extracted text and, when known, the page count.
type Result struct {
	Text  string
	Pages int
}

// Extractor converts one family of content types.
type Extractor interface {
	ContentTypes() []string
	Extract(ctx context.Context, data []byte) (Result, error)
}

// Registry dispatches by content type.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry registers extractors. Later registrations win on conflicts.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	for _, e := range extractors {
		for _, ct := range e.ContentTypes() {
			r.byType[ct] = e
		}
	}
	return r
}

// Default returns the registry with the PDF and plain text extractors.
func Default() *Registry {
	return NewRegistry(NewPlainText(), NewPDF())
}

// Supports reports whether contentType has an extractor.
func (r *Registry) Supports(contentType string) bool {
	_, ok := r.byType[normalize(contentType)]
	return ok
}

// ContentTypes lists the supported media types, sorted.
func (r *Registry) ContentTypes() []string {
	out := make([]string, 0, len(r.byType))
	for ct := range r.byType {
		out = append(out, ct)
	}
	sort.Strings(out)
	return out
}

// Extract runs the extractor for contentType. Failures wrap domain.ErrExtraction.
func (r *Registry) Extract(ctx context.Context, contentType string, data []byte) (Result, error) {
	e, ok := r.byType[normalize(contentType)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedContent, contentType)
	}
	res, err := e.Extract(ctx, data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	return res, nil
}

// normalize drops parameters such as charset and lowercases the media type.
func normalize(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
