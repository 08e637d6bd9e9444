// Package memory provides the default in-process inventory cache.
package memory

import (
	"context"
	"sync"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Store implements ports.CacheStore with a plain map. The zero value is not
// usable; call New.
//
// Nodes are deep-copied on both Put and Get: the cached snapshot stays
// pristine while reconciliation mutates the copies it was handed, and
// concurrent readers never share node pointers.
type Store struct {
	mu      sync.Mutex
	regions map[string][]*fleet.Node
}

// New creates an empty in-memory cache store.
func New() *Store {
	return &Store{regions: make(map[string][]*fleet.Node)}
}

// Get returns a copy of the cached inventory for a region.
func (s *Store) Get(ctx context.Context, region string) ([]*fleet.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, ok := s.regions[region]
	return fleet.CloneNodes(nodes), ok, nil
}

// Put replaces the cached inventory for a region.
func (s *Store) Put(ctx context.Context, region string, nodes []*fleet.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[region] = fleet.CloneNodes(nodes)
	return nil
}

// Drop removes the region's cache entry.
func (s *Store) Drop(ctx context.Context, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regions, region)
	return nil
}
