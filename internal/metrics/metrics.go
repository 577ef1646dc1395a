// Package metrics exposes Prometheus metrics for the HTTP API, background
// analysis tasks and analysis providers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dish_journal"

// Metrics holds the collectors of one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	providerRequestsTotal *prometheus.CounterVec
	providerTokensTotal   *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors plus the
// application metrics.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_tasks_total",
			Help:      "Total number of background analysis tasks",
		},
		[]string{"task", "status"}, // status: success, error
	)
	m.taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_task_duration_seconds",
			Help:      "Time taken by background analysis tasks",
			// provider calls take from about a second up to a couple of minutes
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"task"},
	)
	m.providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of analysis provider calls",
		},
		[]string{"provider", "status"},
	)
	m.providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens reported by analysis providers",
		},
		[]string{"provider", "direction"}, // direction: input, output
	)

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tasksTotal,
		m.taskDuration,
		m.providerRequestsTotal,
		m.providerTokensTotal,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveTask(task string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(task, status(err)).Inc()
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *Metrics) ObserveProvider(provider string, err error, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.providerRequestsTotal.WithLabelValues(provider, status(err)).Inc()
	if err != nil {
		return
	}
	m.providerTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	m.providerTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
