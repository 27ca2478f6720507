// ABOUTME: Depth-limited recursive renderer for node projections
// ABOUTME: Single-node projections cached by id, children merged per level

package render

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

// CacheNamespace labels the rendered-projection cache in metrics
const CacheNamespace = "projection"

// ErrDepthExceeded rejects a render whose requested depth is beyond the
// configured maximum. Each extra level multiplies store calls by the
// branching factor, so the cap is enforced before any work begins.
var ErrDepthExceeded = errors.New("render: depth exceeds configured maximum")

// Loader is the subset of the detail aggregator the renderer consumes.
type Loader interface {
	LoadByID(ctx context.Context, id int64) (node.NodeDetails, error)
	LoadChildren(ctx context.Context, details node.NodeDetails) ([]node.NodeDetails, error)
}

// Projection is the rendered view of a node: core fields, version
// history and attributes grouped by category, with children nested for
// depth-bounded renders.
type Projection struct {
	ID         int64                        `json:"id"`
	ParentID   int64                        `json:"parentId"`
	Name       string                       `json:"name"`
	SubType    int                          `json:"subType"`
	CreateDate time.Time                    `json:"createDate"`
	ModifyDate time.Time                    `json:"modifyDate"`
	Versions   []VersionProjection          `json:"versions,omitempty"`
	Attributes map[string]map[string]string `json:"attributes,omitempty"`
	Children   []Projection                 `json:"children,omitempty"`
}

// VersionProjection is the rendered view of one version row.
type VersionProjection struct {
	Number     int64     `json:"number"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType"`
	CreateDate time.Time `json:"createDate"`
}

// Renderer produces depth-bounded nested projections.
type Renderer struct {
	loader       Loader
	cache        *cache.Cache[int64, Projection]
	maxDepth     int
	hiddenPrefix string
	log          *logger.Logger
	metrics      *metrics.Metrics
}

// NewRenderer creates a renderer. maxDepth caps every request;
// hiddenPrefix marks internally reserved children that never render.
func NewRenderer(l Loader, c *cache.Cache[int64, Projection], maxDepth int, hiddenPrefix string) *Renderer {
	return &Renderer{
		loader:       l,
		cache:        c,
		maxDepth:     maxDepth,
		hiddenPrefix: hiddenPrefix,
	}
}

// SetLogger attaches a structured logger.
func (r *Renderer) SetLogger(l *logger.Logger) { r.log = l }

// SetMetrics attaches Prometheus instrumentation.
func (r *Renderer) SetMetrics(m *metrics.Metrics) { r.metrics = m }

// Render projects an already-loaded node to the requested depth.
func (r *Renderer) Render(ctx context.Context, details node.NodeDetails, depth int) (Projection, error) {
	if err := r.checkDepth(depth); err != nil {
		return Projection{}, err
	}
	if r.metrics != nil {
		r.metrics.RendersTotal.Inc()
	}
	return r.render(ctx, details, depth)
}

// RenderByID projects a node by identifier. A projection cache hit on a
// depth-zero request short-circuits the store entirely.
func (r *Renderer) RenderByID(ctx context.Context, id int64, depth int) (Projection, error) {
	if err := r.checkDepth(depth); err != nil {
		return Projection{}, err
	}
	if r.metrics != nil {
		r.metrics.RendersTotal.Inc()
	}

	if depth == 0 {
		if cached, ok := r.cache.Get(id); ok {
			r.recordHit()
			return cached, nil
		}
	}

	details, err := r.loader.LoadByID(ctx, id)
	if err != nil {
		return Projection{}, err
	}
	return r.render(ctx, details, depth)
}

// Evict drops the cached projection for one node.
func (r *Renderer) Evict(id int64) {
	r.cache.Evict(id)
	if r.metrics != nil {
		r.metrics.CacheEvictsTotal.WithLabelValues(CacheNamespace).Inc()
	}
}

func (r *Renderer) checkDepth(depth int) error {
	if depth < 0 || depth > r.maxDepth {
		if r.metrics != nil {
			r.metrics.RenderDepthRejects.Inc()
		}
		if r.log != nil {
			r.log.Warn("Render rejected").
				Int("depth", depth).
				Int("max_depth", r.maxDepth).
				Send()
		}
		return ErrDepthExceeded
	}
	return nil
}

func (r *Renderer) render(ctx context.Context, details node.NodeDetails, depth int) (Projection, error) {
	proj := r.single(details)
	if depth == 0 {
		return proj, nil
	}

	children, err := r.loader.LoadChildren(ctx, details)
	if err != nil {
		return Projection{}, err
	}

	rendered := make([]Projection, 0, len(children))
	for _, child := range children {
		// An empty prefix would match every name, so it disables
		// filtering instead of hiding everything.
		if r.hiddenPrefix != "" && strings.HasPrefix(child.Core.Name, r.hiddenPrefix) {
			continue
		}
		cp, err := r.render(ctx, child, depth-1)
		if err != nil {
			return Projection{}, err
		}
		rendered = append(rendered, cp)
	}
	if len(rendered) > 0 {
		proj.Children = rendered
	}
	return proj, nil
}

// single returns the childless projection for a node, from cache when
// live. The cached value never carries children; callers attach those
// to their own copy.
func (r *Renderer) single(details node.NodeDetails) Projection {
	if cached, ok := r.cache.Get(details.Core.DataID); ok {
		r.recordHit()
		return cached
	}
	r.recordMiss()

	proj := project(details)
	r.cache.Put(details.Core.DataID, proj)
	return proj
}

// project builds the childless projection from an aggregate.
func project(d node.NodeDetails) Projection {
	proj := Projection{
		ID:         d.Core.DataID,
		ParentID:   d.Core.ParentID,
		Name:       d.Core.Name,
		SubType:    d.Core.SubType,
		CreateDate: d.Core.CreateDate,
		ModifyDate: d.Core.ModifyDate,
	}

	for _, v := range d.Versions {
		proj.Versions = append(proj.Versions, VersionProjection{
			Number:     v.VersionNumber,
			Filename:   v.Filename,
			SizeBytes:  v.SizeBytes,
			MimeType:   v.MimeType,
			CreateDate: v.CreateDate,
		})
	}

	if d.HasAttributes() {
		proj.Attributes = make(map[string]map[string]string)
		for _, a := range d.Attributes {
			group, ok := proj.Attributes[a.Category]
			if !ok {
				group = make(map[string]string)
				proj.Attributes[a.Category] = group
			}
			group[a.Attribute] = a.ValueString()
		}
	}
	return proj
}

func (r *Renderer) recordHit() {
	if r.metrics != nil {
		r.metrics.RecordCacheHit(CacheNamespace)
	}
}

func (r *Renderer) recordMiss() {
	if r.metrics != nil {
		r.metrics.RecordCacheMiss(CacheNamespace)
	}
}
