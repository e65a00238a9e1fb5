// Package db defines the Redis-side storage roles used by docrag: JSON document
// records, hashed segment vectors, cached embeddings and the FT indexes over them.
package db

import (
	"context"
	"time"
)

// Store is everything the Redis driver offers. Repositories take the narrow roles below.
//
//nolint:interfacebloat // facade; repositories depend on narrow roles
type Store interface {
	Pinger
	JSONDocs
	Hashes
	Cache
	Deleter
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONDocs stores whole JSON documents with create-only and update-only writes.
type JSONDocs interface {
	JSONSetNX(ctx context.Context, key string, data []byte) error
	JSONSetXX(ctx context.Context, key string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// HashSetItem is one key and its fields for a pipelined write.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// Hashes writes flat hashes, one per indexed segment.
type Hashes interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// Cache holds opaque values with an optional expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Deleter removes keys of any type and reports how many existed.
type Deleter interface {
	DelMulti(ctx context.Context, keys []string) (int, error)
}

// IndexManager creates FT indexes and inspects existing ones.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexDimension(ctx context.Context, name, field string) (int, error)
}

// Searcher runs FT.SEARCH queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
}
