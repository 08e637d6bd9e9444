package ports

import (
	"context"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// InventoryProvider yields node records for one cloud region and performs
// instance lifecycle operations.
type InventoryProvider interface {
	// Region returns the region this provider is bound to.
	Region() string

	// Refresh fetches the full node inventory from the cloud.
	Refresh(ctx context.Context) ([]*fleet.Node, error)

	// CreateAbsentNode synthesizes a placeholder node from a template node
	// specification that matched no live instance.
	CreateAbsentNode(spec fleet.NodeSpec) *fleet.Node

	// Start starts (or restarts) the node's backing instance.
	Start(ctx context.Context, node *fleet.Node) error

	// Stop stops the node's backing instance.
	Stop(ctx context.Context, node *fleet.Node) error

	// Terminate terminates the node's backing instance.
	Terminate(ctx context.Context, node *fleet.Node) error

	// CreateKeyPair creates a named key pair and saves the private key under
	// dir, returning the key name and the saved key path.
	CreateKeyPair(ctx context.Context, name, dir string) (keyName, keyPath string, err error)
}
