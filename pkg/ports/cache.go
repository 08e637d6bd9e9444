package ports

import (
	"context"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// CacheStore memoizes the last inventory fetch per region.
//
// Entries are replaced wholesale on refresh and dropped wholesale on
// invalidation; individual nodes are never updated in place.
type CacheStore interface {
	// Get returns the cached inventory for a region, or ok=false on a miss.
	Get(ctx context.Context, region string) (nodes []*fleet.Node, ok bool, err error)

	// Put replaces the cached inventory for a region.
	Put(ctx context.Context, region string, nodes []*fleet.Node) error

	// Drop removes the region's cache entry. Dropping a missing entry is not
	// an error.
	Drop(ctx context.Context, region string) error
}
