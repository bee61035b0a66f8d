package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the session record under a single namespaced key.
// Intended for clients that run server-side (schedulers, bots) where a local
// file is not durable across hosts.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. prefix namespaces the key;
// it defaults to "costscope".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "costscope"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key() string {
	return s.prefix + ":session:v1"
}

// Load reads the record, returning ErrNotFound when the key is absent.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.rdb.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Decode(data)
}

// Save writes the record. No TTL: the refresh credential inside carries its
// own server-side expiry.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(), data, 0).Err()
}

// Clear deletes the record key.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key()).Err()
}
