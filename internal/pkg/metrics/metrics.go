// Package metrics holds the Prometheus collectors of the line calculator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Alert delivery statuses.
const (
	AlertSent    = "sent"
	AlertFailed  = "failed"
	AlertDropped = "dropped"
)

// Registry owns the collectors and the Prometheus registry they are registered on.
type Registry struct {
	reg *prometheus.Registry

	Reports           *prometheus.CounterVec
	ComputeDuration   prometheus.Histogram
	CacheRequests     *prometheus.CounterVec
	DegenerateMarkets prometheus.Counter
	Alerts            *prometheus.CounterVec
	LineSnapshots     prometheus.Counter
	RateLimited       prometheus.Counter
}

// NewRegistry creates a registry with every collector registered, plus the Go
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linecalc_reports_total",
				Help: "Probability reports served, by source",
			},
			[]string{"source"},
		),

		ComputeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linecalc_compute_duration_seconds",
				Help:    "Engine time to compute one report",
				Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
			},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linecalc_cache_requests_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),

		DegenerateMarkets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linecalc_degenerate_markets_total",
				Help: "Reports in which at least one market fell back to a neutral distribution",
			},
		),

		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linecalc_alerts_total",
				Help: "Probability movement alerts by delivery status",
			},
			[]string{"status"},
		),

		LineSnapshots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linecalc_line_snapshots_total",
				Help: "Line snapshots recorded",
			},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linecalc_rate_limited_requests_total",
				Help: "Requests rejected by the per-client limiter",
			},
		),
	}

	r.reg.MustRegister(
		r.Reports,
		r.ComputeDuration,
		r.CacheRequests,
		r.DegenerateMarkets,
		r.Alerts,
		r.LineSnapshots,
		r.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveCompute records one engine run.
func (r *Registry) ObserveCompute(d time.Duration, degenerate bool) {
	if r == nil {
		return
	}
	r.ComputeDuration.Observe(d.Seconds())
	if degenerate {
		r.DegenerateMarkets.Inc()
	}
}

// ObserveCache records one cache lookup.
func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheRequests.WithLabelValues(result).Inc()
}

// ObserveReport counts a served report.
func (r *Registry) ObserveReport(source string) {
	if r == nil {
		return
	}
	r.Reports.WithLabelValues(source).Inc()
}

// ObserveAlert counts an alert by delivery status.
func (r *Registry) ObserveAlert(status string) {
	if r == nil {
		return
	}
	r.Alerts.WithLabelValues(status).Inc()
}

// ObserveLineSnapshot counts a recorded line snapshot.
func (r *Registry) ObserveLineSnapshot() {
	if r == nil {
		return
	}
	r.LineSnapshots.Inc()
}

// ObserveRateLimited counts a request rejected by the limiter.
func (r *Registry) ObserveRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
