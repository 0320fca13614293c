package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the scoping core.
type Metrics struct {
	registry *prometheus.Registry

	// Scope resolution
	ResolutionsTotal   *prometheus.CounterVec // labels: ref_kind, outcome
	ResolutionDuration *prometheus.HistogramVec

	// Role evaluation
	RoleChecksTotal *prometheus.CounterVec // labels: resource_type, outcome
	RoleCacheHits   prometheus.Counter
	RoleCacheMisses prometheus.Counter

	// Grant cache (redis)
	GrantCacheHits   prometheus.Counter
	GrantCacheMisses prometheus.Counter

	// Provisioning
	ProvisionsTotal *prometheus.CounterVec // labels: outcome

	// Database pool
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tome_scope_resolutions_total",
			Help: "Scope resolutions by classified reference kind and outcome",
		}, []string{"ref_kind", "outcome"}),
		ResolutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tome_scope_resolution_duration_seconds",
			Help:    "Scope resolution latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"ref_kind"}),
		RoleChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tome_role_checks_total",
			Help: "Role resolutions by resource type and outcome",
		}, []string{"resource_type", "outcome"}),
		RoleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tome_role_cache_hits_total",
			Help: "Role-resolution cache hits",
		}),
		RoleCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tome_role_cache_misses_total",
			Help: "Role-resolution cache misses",
		}),
		GrantCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tome_grant_cache_hits_total",
			Help: "Redis grant cache hits",
		}),
		GrantCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tome_grant_cache_misses_total",
			Help: "Redis grant cache misses",
		}),
		ProvisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tome_personal_org_provisions_total",
			Help: "Personal organization provisioning attempts by outcome",
		}, []string{"outcome"}),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tome_db_connections_active",
			Help: "Open database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tome_db_connections_idle",
			Help: "Idle database connections",
		}),
	}

	registry.MustRegister(
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.RoleChecksTotal,
		m.RoleCacheHits,
		m.RoleCacheMisses,
		m.GrantCacheHits,
		m.GrantCacheMisses,
		m.ProvisionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)
	return m
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
