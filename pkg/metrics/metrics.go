// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "annodb"

// Metrics owns a registry and the collectors registered on it. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	recordsLoaded *prometheus.CounterVec
	queries       *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	cellOutcomes  *prometheus.CounterVec
	datasets      prometheus.Gauge
}

// New creates collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		recordsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Annotation rows inserted, by dataset and format",
		}, []string{"dataset", "format"}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Annotation queries served, by dataset, operation and result",
		}, []string{"dataset", "operation", "result"}),
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "GitHub webhook events, by event type and trigger decision",
		}, []string{"event", "triggered"}),
		cellOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matrix_cells_evaluated_total",
			Help:      "Matrix cells evaluated, by job and outcome",
		}, []string{"job", "status"}),
		datasets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasets_loaded",
			Help:      "Number of annotation datasets currently loaded",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordsLoaded adds the rows inserted into a dataset
func (m *Metrics) RecordsLoaded(dataset, format string, n int) {
	if m == nil {
		return
	}
	m.recordsLoaded.WithLabelValues(dataset, format).Add(float64(n))
}

// Query counts one annotation query
func (m *Metrics) Query(dataset, operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.queries.WithLabelValues(dataset, operation, result).Inc()
}

// WebhookEvent counts one webhook delivery
func (m *Metrics) WebhookEvent(event string, triggered bool) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, strconv.FormatBool(triggered)).Inc()
}

// CellOutcome counts one evaluated matrix cell
func (m *Metrics) CellOutcome(job, status string) {
	if m == nil {
		return
	}
	m.cellOutcomes.WithLabelValues(job, status).Inc()
}

// SetDatasets reports the number of loaded datasets
func (m *Metrics) SetDatasets(n int) {
	if m == nil {
		return
	}
	m.datasets.Set(float64(n))
}
