// Package metrics exposes Prometheus collectors for the API and workers on a
// private registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsdesk/internal/core"
)

const namespace = "opsdesk"

type Registry struct {
	reg *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	PersistenceFailures *prometheus.CounterVec
	BudgetAlerts        *prometheus.CounterVec
	ExpensesRecorded    *prometheus.CounterVec
	RecurringGenerated  prometheus.Counter
	ExportMessages      *prometheus.CounterVec
	DashboardCache      *prometheus.CounterVec
}

// New registers every collector, plus the Go runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "write_failures_total",
			Help: "Snapshot writes that failed, by store key.",
		}, []string{"store_key"}),
		BudgetAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "budget", Name: "alerts_total",
			Help: "Budget threshold alerts emitted, by category.",
		}, []string{"category"}),
		ExpensesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "expense", Name: "records_total",
			Help: "Expense records created, by category.",
		}, []string{"category"}),
		RecurringGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recurring", Name: "generated_total",
			Help: "Expense records materialized from recurring items.",
		}),
		ExportMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "export", Name: "messages_total",
			Help: "Export messages handled by the worker, by type and outcome.",
		}, []string{"type", "outcome"}),
		DashboardCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dashboard", Name: "cache_lookups_total",
			Help: "Dashboard cache lookups by result.",
		}, []string{"result"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.HTTPDuration,
		r.PersistenceFailures,
		r.BudgetAlerts,
		r.ExpensesRecorded,
		r.RecurringGenerated,
		r.ExportMessages,
		r.DashboardCache,
	)
	return r
}

// Gatherer exposes the underlying registry, for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (r *Registry) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.DashboardCache.WithLabelValues(result).Inc()
}

// Sink counts store events. It satisfies services.EventSink.
type Sink struct {
	R *Registry
}

func (s Sink) BudgetThresholdReached(_ context.Context, st core.BudgetStatus) {
	s.R.BudgetAlerts.WithLabelValues(st.Category).Inc()
}

func (s Sink) ExpenseRecorded(_ context.Context, _ core.ExpenseRecord, item core.ExpenseItem) {
	s.R.ExpensesRecorded.WithLabelValues(item.Category).Inc()
}

func (s Sink) PersistenceFailed(_ context.Context, key string, _ error) {
	s.R.PersistenceFailures.WithLabelValues(key).Inc()
}
