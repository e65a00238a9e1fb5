package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docrag/internal/db"
)

// JSONSetNX stores a JSON document only if the key is absent.
func (s *Store) JSONSetNX(ctx context.Context, key string, data []byte) error {
	cmd := s.b().JsonSet().Key(key).Path("$").Value(string(data)).Nx().Build()
	err := s.do(ctx, cmd).Error()
	if rueidis.IsRedisNil(err) {
		return db.ErrKeyExists
	}
	if err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// JSONSetXX replaces a JSON document only if the key exists.
func (s *Store) JSONSetXX(ctx context.Context, key string, data []byte) error {
	cmd := s.b().JsonSet().Key(key).Path("$").Value(string(data)).Xx().Build()
	err := s.do(ctx, cmd).Error()
	if rueidis.IsRedisNil(err) {
		return db.ErrKeyNotFound
	}
	if err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// JSONGet retrieves a JSON document by key and optional paths.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	cmd := s.b().JsonGet().Key(key).Path(paths...).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}
