// ABOUTME: Detail aggregator assembling core, version and attribute rows
// ABOUTME: One NodeDetails per node, cached by id, never partial

package details

import (
	"context"

	"github.com/jonnycoombes/tarantula/internal/logger"
	"github.com/jonnycoombes/tarantula/internal/metrics"
	"github.com/jonnycoombes/tarantula/pkg/cache"
	"github.com/jonnycoombes/tarantula/pkg/node"
)

// CacheNamespace labels the node-detail cache in metrics
const CacheNamespace = "detail"

// Store is the subset of the node store the aggregator consumes.
type Store interface {
	CoreByID(ctx context.Context, id int64) (node.NodeCoreDetails, error)
	ChildByName(ctx context.Context, parentID int64, name string) (node.NodeCoreDetails, error)
	ChildrenByParent(ctx context.Context, parentID int64) ([]node.NodeCoreDetails, error)
	VersionsByID(ctx context.Context, id int64) ([]node.NodeVersionDetails, error)
	AttributesByID(ctx context.Context, id int64) ([]node.NodeAttributeDetails, error)
}

// Aggregator loads full NodeDetails aggregates. The three constituent
// queries carry no cross-query atomicity; a mutation between them can
// tear a read, accepted for this read-mostly, cache-amortized workload.
type Aggregator struct {
	store   Store
	cache   *cache.Cache[int64, node.NodeDetails]
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewAggregator creates an aggregator over the given store and
// node-detail cache.
func NewAggregator(s Store, c *cache.Cache[int64, node.NodeDetails]) *Aggregator {
	return &Aggregator{store: s, cache: c}
}

// SetLogger attaches a structured logger.
func (a *Aggregator) SetLogger(l *logger.Logger) { a.log = l }

// SetMetrics attaches Prometheus instrumentation.
func (a *Aggregator) SetMetrics(m *metrics.Metrics) { a.metrics = m }

// LoadByID returns the full aggregate for a node identifier.
func (a *Aggregator) LoadByID(ctx context.Context, id int64) (node.NodeDetails, error) {
	if cached, ok := a.cache.Get(id); ok {
		a.recordHit()
		return cached, nil
	}
	a.recordMiss()

	core, err := a.store.CoreByID(ctx, id)
	if err != nil {
		return node.NodeDetails{}, err
	}
	return a.assemble(ctx, core)
}

// LoadByParentAndName returns the full aggregate for the child named
// name under parentID.
func (a *Aggregator) LoadByParentAndName(ctx context.Context, parentID int64, name string) (node.NodeDetails, error) {
	core, err := a.store.ChildByName(ctx, parentID, name)
	if err != nil {
		return node.NodeDetails{}, err
	}
	if cached, ok := a.cache.Get(core.DataID); ok {
		a.recordHit()
		return cached, nil
	}
	a.recordMiss()
	return a.assemble(ctx, core)
}

// LoadChildren returns the full aggregates of a node's children,
// deriving the child-search parent id through the alias/volume rule.
func (a *Aggregator) LoadChildren(ctx context.Context, details node.NodeDetails) ([]node.NodeDetails, error) {
	cores, err := a.store.ChildrenByParent(ctx, details.Core.ChildParentID())
	if err != nil {
		return nil, err
	}

	children := make([]node.NodeDetails, 0, len(cores))
	for _, core := range cores {
		if cached, ok := a.cache.Get(core.DataID); ok {
			a.recordHit()
			children = append(children, cached)
			continue
		}
		a.recordMiss()
		child, err := a.assemble(ctx, core)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// Evict drops the cached aggregate for one node. Collaborators call
// this after their own mutation side effects.
func (a *Aggregator) Evict(id int64) {
	a.cache.Evict(id)
	if a.metrics != nil {
		a.metrics.CacheEvictsTotal.WithLabelValues(CacheNamespace).Inc()
	}
}

// assemble loads the version and attribute rows for an already-fetched
// core row and caches the finished aggregate. Any sub-query failure
// fails the whole aggregate.
func (a *Aggregator) assemble(ctx context.Context, core node.NodeCoreDetails) (node.NodeDetails, error) {
	versions, err := a.store.VersionsByID(ctx, core.DataID)
	if err != nil {
		return node.NodeDetails{}, err
	}
	attrs, err := a.store.AttributesByID(ctx, core.DataID)
	if err != nil {
		return node.NodeDetails{}, err
	}

	details := node.NodeDetails{Core: core, Versions: versions, Attributes: attrs}
	a.cache.Put(core.DataID, details)

	if a.log != nil {
		a.log.Debug("Aggregate assembled").
			Int64("id", core.DataID).
			Int("versions", len(versions)).
			Int("attributes", len(attrs)).
			Send()
	}
	return details, nil
}

func (a *Aggregator) recordHit() {
	if a.metrics != nil {
		a.metrics.RecordCacheHit(CacheNamespace)
	}
}

func (a *Aggregator) recordMiss() {
	if a.metrics != nil {
		a.metrics.RecordCacheMiss(CacheNamespace)
	}
}
