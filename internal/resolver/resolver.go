// Package resolver matches cluster templates to live cloud inventory and
// resolves operator target expressions to ordered node lists.
//
// Inventory is fetched from the provider at most once per region between
// invalidations; every mutating operation and cluster switch drops the
// region's cache entry.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/pkg/fleet"
	"github.com/flotilla-io/flotilla/pkg/ports"
)

// UnassignedGroup is the reserved group for inventory nodes claimed by no
// cluster template.
const UnassignedGroup = "Unassigned"

// Resolver reconciles cluster templates against cached inventory.
type Resolver struct {
	provider ports.InventoryProvider
	store    ports.TemplateStore
	cache    ports.CacheStore
	logger   *slog.Logger

	// mu serializes reconciliation passes and guards current. The console
	// loop, the demux prompt refresh, and the HTTP status endpoint all call
	// in concurrently.
	mu sync.Mutex

	// current is the cluster the operator switched to; empty means all
	// templates in the region reconcile.
	current string
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger configures a logger for resolution events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver over the given provider, template store and cache.
func New(provider ports.InventoryProvider, store ports.TemplateStore, cache ports.CacheStore, opts ...Option) *Resolver {
	r := &Resolver{
		provider: provider,
		store:    store,
		cache:    cache,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the cluster the operator switched to, or "".
func (r *Resolver) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Use switches the resolver to one cluster template and invalidates the
// region cache.
func (r *Resolver) Use(ctx context.Context, cluster string) error {
	if _, err := r.store.Template(cluster); err != nil {
		return err
	}
	r.mu.Lock()
	r.current = cluster
	r.mu.Unlock()
	return r.Invalidate(ctx)
}

// ClearCluster unloads the current cluster template and invalidates the
// region cache.
func (r *Resolver) ClearCluster(ctx context.Context) error {
	r.mu.Lock()
	r.current = ""
	r.mu.Unlock()
	return r.Invalidate(ctx)
}

// Invalidate drops the region's inventory cache entry. The next resolution
// fetches fresh inventory from the provider.
func (r *Resolver) Invalidate(ctx context.Context) error {
	if r.provider == nil {
		return fleet.ErrNoProvider
	}
	return r.cache.Drop(ctx, r.provider.Region())
}

// Resolve returns the ordered nodes matching a target expression.
// `*` selects all currently known nodes; a bare token matches the name field
// by glob; `key=value` matches an arbitrary field. Empty match sets are
// informational, not an error.
func (r *Resolver) Resolve(ctx context.Context, target string) ([]*fleet.Node, error) {
	nodes, err := r.AllNodes(ctx)
	if err != nil {
		return nil, err
	}

	key, value := fleet.ParseTarget(target)
	if key == "" {
		return nodes, nil
	}

	matched, err := fleet.Filter(nodes, key, value)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		r.logger.Info("no nodes match filter", "key", key, "value", value)
	}
	return matched, nil
}

// RunningNodes resolves a target expression and keeps only nodes whose
// backing instance is running.
func (r *Resolver) RunningNodes(ctx context.Context, target string) ([]*fleet.Node, error) {
	nodes, err := r.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	var running []*fleet.Node
	for _, node := range nodes {
		if node.Running() {
			running = append(running, node)
		}
	}
	if len(nodes) > 0 && len(running) == 0 {
		r.logger.Info("no target nodes are in the running state", "target", target)
	}
	return running, nil
}

// AllNodes reconciles and returns the flattened node list, sorted by cluster
// name for stable display.
func (r *Resolver) AllNodes(ctx context.Context) ([]*fleet.Node, error) {
	byCluster, err := r.NodesByCluster(ctx)
	if err != nil {
		return nil, err
	}

	var flat []*fleet.Node
	for _, nodes := range byCluster {
		flat = append(flat, nodes...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Cluster < flat[j].Cluster
	})
	return flat, nil
}

// NodesByCluster reconciles every configured cluster template against the
// cached inventory and returns the grouped result.
//
// Per template: candidate nodes are selected by the template's membership
// filter. Per node specification: matching candidates (all of them) are
// assigned the spec's name and overrides; a spec with no match yields exactly
// one absent placeholder. Candidates still unnamed afterwards are appended as
// unnamed discoveries. When no current cluster is set, inventory claimed by
// no cluster lands in the Unassigned group.
func (r *Resolver) NodesByCluster(ctx context.Context) (map[string][]*fleet.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, err := r.inventory(ctx)
	if err != nil {
		return nil, err
	}

	templates, err := r.store.Templates()
	if err != nil {
		return nil, fmt.Errorf("loading cluster templates: %w", err)
	}

	selected := r.selectTemplates(templates)

	byCluster := make(map[string][]*fleet.Node, len(selected)+1)
	for _, tpl := range selected {
		if err := r.reconcileTemplate(tpl, nodes, byCluster); err != nil {
			return nil, err
		}
	}

	if r.current == "" {
		for _, node := range nodes {
			if node.Cluster == "" {
				byCluster[UnassignedGroup] = append(byCluster[UnassignedGroup], node)
			}
		}
	}

	return byCluster, nil
}

// selectTemplates returns the templates to reconcile, in stable name order:
// the current cluster only when one is set, otherwise every template bound to
// the provider's region (templates without a region bind everywhere).
func (r *Resolver) selectTemplates(templates map[string]*fleet.ClusterTemplate) []*fleet.ClusterTemplate {
	var selected []*fleet.ClusterTemplate
	if r.current != "" {
		if tpl, ok := templates[r.current]; ok {
			selected = append(selected, tpl)
		}
		return selected
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	region := r.provider.Region()
	for _, name := range names {
		tpl := templates[name]
		if tpl.Region == "" || tpl.Region == region {
			selected = append(selected, tpl)
		}
	}
	return selected
}

func (r *Resolver) reconcileTemplate(tpl *fleet.ClusterTemplate, nodes []*fleet.Node, byCluster map[string][]*fleet.Node) error {
	key, value, err := tpl.MembershipFilter()
	if err != nil {
		return fmt.Errorf("cluster %q: %w", tpl.Name, err)
	}

	candidates, err := fleet.Filter(nodes, key, value)
	if err != nil {
		return fmt.Errorf("cluster %q: %w", tpl.Name, err)
	}
	for _, node := range candidates {
		node.Cluster = tpl.Name
	}

	for _, spec := range tpl.Nodes {
		skey, svalue := spec.SelectorFilter()
		matched, err := fleet.Filter(candidates, skey, svalue)
		if err != nil {
			return fmt.Errorf("cluster %q, node %q: %w", tpl.Name, spec.Name, err)
		}

		if len(matched) == 0 {
			r.logger.Debug("creating absent node", "cluster", tpl.Name, "node", spec.Name)
			absent := r.provider.CreateAbsentNode(fleet.NodeSpec{
				Name:     spec.Name,
				Username: spec.Username,
				KeyFile:  spec.KeyFile,
			})
			absent.Cluster = tpl.Name
			byCluster[tpl.Name] = append(byCluster[tpl.Name], absent)
			continue
		}

		// Multiple matches are all kept, never an error.
		for _, node := range matched {
			node.Name = spec.Name
			if spec.Username != "" {
				node.Username = spec.Username
			}
			if spec.KeyFile != "" {
				node.KeyFile = spec.KeyFile
			}
			node.Cluster = tpl.Name
			byCluster[tpl.Name] = append(byCluster[tpl.Name], node)
		}
	}

	// Present in the cloud, not declared in the template.
	for _, node := range candidates {
		if node.Name == "" {
			byCluster[tpl.Name] = append(byCluster[tpl.Name], node)
		}
	}
	return nil
}

// inventory returns the region's node list, consulting the cache before the
// provider. A cache hit short-circuits the network round trip entirely.
func (r *Resolver) inventory(ctx context.Context) ([]*fleet.Node, error) {
	if r.provider == nil {
		return nil, fleet.ErrNoProvider
	}
	region := r.provider.Region()
	if region == "" {
		return nil, fleet.ErrNoRegion
	}

	cached, ok, err := r.cache.Get(ctx, region)
	if err != nil {
		r.logger.Warn("inventory cache read failed, refreshing", "region", region, "err", err)
	} else if ok {
		r.logger.Info("retrieved nodes from cache", "region", region, "count", len(cached))
		return cached, nil
	}

	nodes, err := r.provider.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing inventory for region %s: %w", region, err)
	}
	r.logger.Info("retrieved nodes from cloud provider", "region", region, "count", len(nodes))

	if err := r.cache.Put(ctx, region, nodes); err != nil {
		r.logger.Warn("inventory cache write failed", "region", region, "err", err)
	}
	return nodes, nil
}
