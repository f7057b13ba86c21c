// Package metrics exposes Prometheus metrics for the wage engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/wage-engine/wage"
)

// Metrics holds Prometheus metrics for the engine, service and API.
type Metrics struct {
	// CacheLookups counts derivation cache lookups by kind and result.
	CacheLookups *prometheus.CounterVec

	// CacheInvalidations counts policies-changed signals.
	CacheInvalidations prometheus.Counter

	// ReportBuildDuration is the time to build an uncached monthly report.
	ReportBuildDuration prometheus.Histogram

	// WarmerRuns counts report warmer rebuilds by status.
	WarmerRuns *prometheus.CounterVec

	// HTTPRequests counts API requests by method, route and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration is API latency by route.
	HTTPDuration *prometheus.HistogramVec
}

var (
	_ wage.CacheObserver  = (*Metrics)(nil)
	_ wage.ReportObserver = (*Metrics)(nil)
)

// New creates metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in the server and a fresh registry in tests.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "derivation_cache_lookups_total",
				Help:      "Derivation cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),

		CacheInvalidations: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "derivation_cache_invalidations_total",
				Help:      "Number of times the derivation cache was dropped",
			},
		),

		ReportBuildDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "monthly_report_build_duration_seconds",
				Help:      "Time to build a monthly report from the store",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		WarmerRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_warmer_runs_total",
				Help:      "Report warmer rebuilds by status",
			},
			[]string{"status"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) CacheHit(kind string)  { m.CacheLookups.WithLabelValues(kind, "hit").Inc() }
func (m *Metrics) CacheMiss(kind string) { m.CacheLookups.WithLabelValues(kind, "miss").Inc() }
func (m *Metrics) CacheInvalidated()     { m.CacheInvalidations.Inc() }

func (m *Metrics) ObserveReportBuild(d time.Duration) {
	m.ReportBuildDuration.Observe(d.Seconds())
}

// ObserveWarmerRun records one warmer rebuild.
func (m *Metrics) ObserveWarmerRun(status string) {
	m.WarmerRuns.WithLabelValues(status).Inc()
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
