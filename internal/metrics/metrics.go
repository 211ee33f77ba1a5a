// Package metrics exposes the Prometheus collectors for the fritter server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fritter",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fritter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fritter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	freetsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fritter",
			Subsystem: "freets",
			Name:      "created_total",
			Help:      "Total number of freets published.",
		},
	)

	interactionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fritter",
			Subsystem: "interactions",
			Name:      "created_total",
			Help:      "Total number of interactions created.",
		},
		[]string{"kind"},
	)

	expiredRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fritter",
			Subsystem: "expiration",
			Name:      "removed_total",
			Help:      "Records physically removed by expiration sweeps.",
		},
		[]string{"collection"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		freetsCreated,
		interactionsCreated,
		expiredRemoved,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks a request as started.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight marks a request as finished.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFreetCreated counts a published freet.
func RecordFreetCreated() { freetsCreated.Inc() }

// RecordInteractionCreated counts a created interaction by kind.
func RecordInteractionCreated(kind string) {
	interactionsCreated.WithLabelValues(kind).Inc()
}

// RecordExpiredRemoved counts rows removed by an expiration sweep.
func RecordExpiredRemoved(collection string, n int) {
	if n > 0 {
		expiredRemoved.WithLabelValues(collection).Add(float64(n))
	}
}
