// Package metrics provides Prometheus metrics for Tarantula
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the resolution core
type Metrics struct {
	// Cache metrics, labelled by namespace (path, detail, projection)
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEvictsTotal *prometheus.CounterVec

	// Backing store metrics
	StoreQueriesTotal  *prometheus.CounterVec
	StoreQueryDuration *prometheus.HistogramVec
	StoreCallsInFlight prometheus.Gauge

	// Resolution and rendering metrics
	ResolvesTotal      *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	RendersTotal       prometheus.Counter
	RenderDepthRejects prometheus.Counter

	// Query language metrics
	QueryParsesTotal   *prometheus.CounterVec
	QueryCompilesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. Registration
// happens once per process; subsequent calls return the same set.
func NewMetrics() *Metrics {
	once.Do(register)
	return shared
}

var (
	once   sync.Once
	shared *Metrics
)

func register() {
	m := &Metrics{}

	m.CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	m.CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	m.CacheEvictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_cache_evicts_total",
			Help: "Total number of explicit cache evictions",
		},
		[]string{"namespace"},
	)

	m.StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_store_queries_total",
			Help: "Total number of backing store queries",
		},
		[]string{"query", "status"},
	)

	m.StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tarantula_store_query_duration_seconds",
			Help:    "Duration of backing store queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query"},
	)

	m.StoreCallsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tarantula_store_calls_in_flight",
			Help: "Number of store calls currently occupying worker pool slots",
		},
	)

	m.ResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_resolves_total",
			Help: "Total number of path resolutions",
		},
		[]string{"status"},
	)

	m.ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tarantula_resolve_duration_seconds",
			Help:    "Duration of path resolutions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.RendersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tarantula_renders_total",
			Help: "Total number of recursive render calls",
		},
	)

	m.RenderDepthRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tarantula_render_depth_rejects_total",
			Help: "Total number of renders rejected for exceeding the depth cap",
		},
	)

	m.QueryParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_query_parses_total",
			Help: "Total number of query language parses",
		},
		[]string{"status"},
	)

	m.QueryCompilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarantula_query_compiles_total",
			Help: "Total number of query compilations",
		},
		[]string{"status"},
	)

	shared = m
}

// RecordCacheHit records a hit against the named cache namespace
func (m *Metrics) RecordCacheHit(namespace string) {
	m.CacheHitsTotal.WithLabelValues(namespace).Inc()
}

// RecordCacheMiss records a miss against the named cache namespace
func (m *Metrics) RecordCacheMiss(namespace string) {
	m.CacheMissesTotal.WithLabelValues(namespace).Inc()
}

// RecordStoreQuery records a backing store query with its status
func (m *Metrics) RecordStoreQuery(query string, status string, duration time.Duration) {
	m.StoreQueriesTotal.WithLabelValues(query, status).Inc()
	m.StoreQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordResolve records a path resolution outcome
func (m *Metrics) RecordResolve(status string, duration time.Duration) {
	m.ResolvesTotal.WithLabelValues(status).Inc()
	m.ResolveDuration.Observe(duration.Seconds())
}

// RecordQueryParse records a query language parse outcome
func (m *Metrics) RecordQueryParse(err error) {
	m.QueryParsesTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordQueryCompile records a query compilation outcome
func (m *Metrics) RecordQueryCompile(err error) {
	m.QueryCompilesTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
