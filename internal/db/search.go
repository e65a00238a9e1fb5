package db

import "github.com/kailas-cloud/docrag/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // default "vector"
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for filtered, paginated listing.
type ListQuery struct {
	IndexName string
	Filters   filter.Expression
	Offset    int
	Limit     int
	Fields    []string
	NoContent bool // keys only
	SortBy    string
	SortDesc  bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
