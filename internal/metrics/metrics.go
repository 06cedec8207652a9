// Package metrics holds the Prometheus collectors of the sync server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	// outcome: saved / ignored
	UpsertRecords *prometheus.CounterVec
	// status: ok / invalid / error
	UpsertBatches  *prometheus.CounterVec
	ListedRecords  prometheus.Counter
	StoreDuration  *prometheus.HistogramVec
	RequestLatency *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		UpsertRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsat_upsert_records_total",
				Help: "Attempt records received by bulk upsert",
			},
			[]string{"outcome"},
		),
		UpsertBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsat_upsert_batches_total",
				Help: "Bulk upsert batches by result",
			},
			[]string{"status"},
		),
		ListedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dsat_listed_records_total",
				Help: "Attempt records returned by list calls",
			},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsat_store_duration_seconds",
				Help:    "Time spent in the remote attempt store",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsat_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "code"},
		),
	}
	reg.MustRegister(
		m.UpsertRecords, m.UpsertBatches, m.ListedRecords, m.StoreDuration, m.RequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveStore times one store operation. Use as defer m.ObserveStore("list")().
func (m *Metrics) ObserveStore(op string) func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.StoreDuration.WithLabelValues(op))
	return func() { timer.ObserveDuration() }
}

func (m *Metrics) Upserted(saved, ignored int) {
	if m == nil {
		return
	}
	m.UpsertRecords.WithLabelValues("saved").Add(float64(saved))
	m.UpsertRecords.WithLabelValues("ignored").Add(float64(ignored))
	m.UpsertBatches.WithLabelValues("ok").Inc()
}

func (m *Metrics) BatchFailed(status string) {
	if m == nil {
		return
	}
	m.UpsertBatches.WithLabelValues(status).Inc()
}

func (m *Metrics) Listed(n int) {
	if m == nil {
		return
	}
	m.ListedRecords.Add(float64(n))
}

// Request records latency for one HTTP request. route should be the pattern,
// not the raw path.
func (m *Metrics) Request(method, route string, code int, since time.Time) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(code)).Observe(time.Since(since).Seconds())
}
