// ABOUTME: Incremental cache-aware path resolver
// ABOUTME: Walks segments left to right through alias and volume nodes

package resolve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonnycoombes/tarantula/internal/logger"
	"github.com/jonnycoombes/tarantula/internal/metrics"
	"github.com/jonnycoombes/tarantula/pkg/cache"
	"github.com/jonnycoombes/tarantula/pkg/node"
)

// CacheNamespace labels the path-prefix cache in metrics
const CacheNamespace = "path"

// Store is the subset of the node store the resolver consumes.
type Store interface {
	ChildByName(ctx context.Context, parentID int64, name string) (node.NodeCoreDetails, error)
}

// Resolver turns a segmented path into the core details of the node it
// names. Each resolved prefix is cached under its joined path so a
// re-walk of the same hierarchy stays off the store until the TTL
// lapses.
type Resolver struct {
	store        Store
	cache        *cache.Cache[string, node.NodeCoreDetails]
	rootParentID int64
	expansions   map[string][]string
	log          *logger.Logger
	metrics      *metrics.Metrics
}

// NewResolver creates a resolver. rootParentID is the sentinel parent
// the walk starts from; expansions substitutes a user-facing first
// segment with one or more canonical segments.
func NewResolver(s Store, c *cache.Cache[string, node.NodeCoreDetails], rootParentID int64, expansions map[string][]string) *Resolver {
	return &Resolver{
		store:        s,
		cache:        c,
		rootParentID: rootParentID,
		expansions:   expansions,
	}
}

// SetLogger attaches a structured logger.
func (r *Resolver) SetLogger(l *logger.Logger) { r.log = l }

// SetMetrics attaches Prometheus instrumentation.
func (r *Resolver) SetMetrics(m *metrics.Metrics) { r.metrics = m }

// walkState is the accumulator threaded through the segment fold.
type walkState struct {
	parentID int64  // Parent id the next segment resolves under
	prefix   string // Joined path of the segments resolved so far
}

// Resolve walks segments to a node. Any unresolvable segment fails the
// whole call with ErrNotFound; no partial result is returned and no
// cache entry is written for the failing prefix.
func (r *Resolver) Resolve(ctx context.Context, segments []string) (node.NodeCoreDetails, error) {
	start := time.Now()
	details, err := r.resolve(ctx, segments)
	elapsed := time.Since(start)

	if r.metrics != nil {
		status := "ok"
		switch {
		case errors.Is(err, node.ErrNotFound):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		r.metrics.RecordResolve(status, elapsed)
	}
	if r.log != nil {
		r.log.LogResolve(strings.Join(segments, "/"), elapsed, err)
	}
	return details, err
}

func (r *Resolver) resolve(ctx context.Context, segments []string) (node.NodeCoreDetails, error) {
	if len(segments) == 0 {
		return node.NodeCoreDetails{}, node.ErrNotFound
	}
	expanded := r.expand(segments)

	// Full-path shortcut: a repeated lookup skips the walk entirely
	full := strings.Join(expanded, "/")
	if details, ok := r.cache.Get(full); ok {
		r.recordHit()
		return details, nil
	}

	state := walkState{parentID: r.rootParentID}
	var current node.NodeCoreDetails
	for _, segment := range expanded {
		var err error
		state, current, err = r.step(ctx, state, segment)
		if err != nil {
			return node.NodeCoreDetails{}, err
		}
	}
	return current, nil
}

// step resolves one segment under the accumulated state and returns the
// advanced state.
func (r *Resolver) step(ctx context.Context, state walkState, segment string) (walkState, node.NodeCoreDetails, error) {
	prefix := segment
	if state.prefix != "" {
		prefix = state.prefix + "/" + segment
	}

	if details, ok := r.cache.Get(prefix); ok {
		r.recordHit()
		return walkState{parentID: details.ChildParentID(), prefix: prefix}, details, nil
	}
	r.recordMiss()

	details, err := r.store.ChildByName(ctx, state.parentID, segment)
	if err != nil {
		return state, node.NodeCoreDetails{}, err
	}

	r.cache.Put(prefix, details)
	return walkState{parentID: details.ChildParentID(), prefix: prefix}, details, nil
}

// expand applies the configured single-level substitution to the first
// segment.
func (r *Resolver) expand(segments []string) []string {
	canonical, ok := r.expansions[segments[0]]
	if !ok {
		return segments
	}
	expanded := make([]string, 0, len(canonical)+len(segments)-1)
	expanded = append(expanded, canonical...)
	expanded = append(expanded, segments[1:]...)
	return expanded
}

func (r *Resolver) recordHit() {
	if r.metrics != nil {
		r.metrics.RecordCacheHit(CacheNamespace)
	}
}

func (r *Resolver) recordMiss() {
	if r.metrics != nil {
		r.metrics.RecordCacheMiss(CacheNamespace)
	}
}
