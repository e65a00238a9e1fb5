package extract

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// PlainText passes UTF-8 text through.
type PlainText struct{}

// NewPlainText creates the plain text extractor.
func NewPlainText() *PlainText { return &PlainText{} }

// ContentTypes implements Extractor.
func (p *PlainText) ContentTypes() []string {
	return []string{"text/plain", "text/markdown"}
}

// Extract implements Extractor.
func (p *PlainText) Extract(_ context.Context, data []byte) (Result, error) {
	if !utf8.Valid(data) {
		return Result{}, errors.New("text is not valid UTF-8")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return Result{Text: text, Pages: 1}, nil
}
