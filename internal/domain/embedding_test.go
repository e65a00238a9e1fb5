package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestDimensionGuard_PassesMatchingVector(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	g := NewDimensionGuard(inner, 3)

	res, err := g.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "hello world" {
		t.Errorf("expected text passed through, got %q", inner.got)
	}
	if len(res.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(res.Embedding))
	}
}

func TestDimensionGuard_Mismatch(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	g := NewDimensionGuard(inner, 3)

	_, err := g.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
	if !errors.Is(err, ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestDimensionGuard_EmptyVector(t *testing.T) {
	g := NewDimensionGuard(&stubEmbedder{}, 0)

	_, err := g.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
}

func TestDimensionGuard_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	g := NewDimensionGuard(&stubEmbedder{err: innerErr}, 3)

	_, err := g.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrValidation, "validation_error"},
		{ErrUnsupportedContent, "validation_error"},
		{ErrPermission, "permission_denied"},
		{ErrNotFound, "not_found"},
		{ErrObjectNotFound, "not_found"},
		{ErrNoMatch, "no_match"},
		{ErrEmbedding, "embedding_error"},
		{ErrIndex, "index_error"},
		{ErrExtraction, "extraction_error"},
		{ErrObjectStore, "object_store_error"},
		{ErrGeneration, "generation_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range tests {
		if got := Category(tc.err); got != tc.want {
			t.Errorf("Category(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
