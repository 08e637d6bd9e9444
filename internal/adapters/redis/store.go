// Package redis provides a Redis-backed inventory cache, for operators who
// share one inventory view across shells or hosts.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Store implements ports.CacheStore using Redis. Each region's inventory is
// one JSON value; Put replaces it wholesale and Drop deletes it, matching
// the coarse invalidation model.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets an expiration on cached inventory, so a forgotten shell does
// not serve stale nodes forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for cache entries.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis cache store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "flotilla:inventory:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(region string) string {
	return s.prefix + region
}

// Get returns the cached inventory for a region.
func (s *Store) Get(ctx context.Context, region string) ([]*fleet.Node, bool, error) {
	val, err := s.client.Get(ctx, s.key(region)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var nodes []*fleet.Node
	if err := json.Unmarshal([]byte(val), &nodes); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal inventory: %w", err)
	}
	return nodes, true, nil
}

// Put replaces the cached inventory for a region.
func (s *Store) Put(ctx context.Context, region string, nodes []*fleet.Node) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	if err := s.client.Set(ctx, s.key(region), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Drop removes the region's cache entry.
func (s *Store) Drop(ctx context.Context, region string) error {
	return s.client.Del(ctx, s.key(region)).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
