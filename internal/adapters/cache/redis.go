// Package cache provides a Redis-backed store for the profile response cache,
// letting several server instances share cached documents.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/okian/armory/internal/domain/model"
)

// Default Redis store configuration constants.
const (
	DefaultPrefix = "armory:profile:"
	scanBatch     = 500
)

// RedisStore implements the domain cache Store on Redis. Expiry is delegated
// to Redis key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key namespace.
func WithPrefix(p string) RedisOption {
	return func(s *RedisStore) {
		if p != "" {
			s.prefix = p
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

// Get returns the documents stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (model.ProfileDocuments, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ProfileDocuments{}, false, nil
	}
	if err != nil {
		return model.ProfileDocuments{}, false, fmt.Errorf("redis get: %w", err)
	}
	var v model.ProfileDocuments
	if err := json.Unmarshal(b, &v); err != nil {
		return model.ProfileDocuments{}, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores v with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, v model.ProfileDocuments, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Len counts keys under the prefix with SCAN.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
