package domain

import "errors"

var (
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPermission signals that the requester lacks access to the resource.
	ErrPermission = errors.New("permission denied")
	// ErrEmbedding signals an embedding provider failure or a malformed vector.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector whose length differs from the configured dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIndex signals a vector index failure.
	ErrIndex = errors.New("vector index error")
	// ErrExtraction signals that text could not be extracted from a binary.
	ErrExtraction = errors.New("text extraction failed")
	// ErrUnsupportedContent signals a content type without an extractor.
	ErrUnsupportedContent = errors.New("unsupported content type")
	// ErrNoMatch signals that a query matched nothing in scope.
	ErrNoMatch = errors.New("no relevant content found")
	// ErrObjectStore signals an object store failure.
	ErrObjectStore = errors.New("object store error")
	// ErrObjectNotFound signals a missing binary object.
	ErrObjectNotFound = errors.New("object not found")
	// ErrGeneration signals a generative model failure.
	ErrGeneration = errors.New("generation provider error")
	// ErrInternal signals a broken invariant.
	ErrInternal = errors.New("internal error")
)

// Category maps an error to its machine-readable category.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedContent):
		return "validation_error"
	case errors.Is(err, ErrPermission):
		return "permission_denied"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrObjectNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrVectorDimMismatch):
		return "embedding_error"
	case errors.Is(err, ErrIndex):
		return "index_error"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrObjectStore):
		return "object_store_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	default:
		return "internal_error"
	}
}
