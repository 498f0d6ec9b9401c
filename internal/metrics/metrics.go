// Package metrics exposes Prometheus collectors for the visitor tracker.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	visitorsLoggedTotal        *prometheus.CounterVec
	visitorWriteFailuresTotal  prometheus.Counter
	logQueryFailuresTotal      prometheus.Counter
	passThroughTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		visitorsLoggedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_visitors_logged_total",
				Help: "Total number of visitor rows written, labeled by domain.",
			},
			[]string{"domain"},
		)

		visitorWriteFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_visitor_write_failures_total",
				Help: "Total number of visitor rows that could not be written.",
			},
		)

		logQueryFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_log_query_failures_total",
				Help: "Total number of admin log queries that failed.",
			},
		)

		passThroughTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_passthrough_total",
				Help: "Total number of requests forwarded to an active origin, labeled by host.",
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost lowercases a host label and strips any port.
// It returns "unknown" for an empty host.
func SanitizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return "unknown"
	}
	return host
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveVisitorLogged counts a stored visitor row.
func ObserveVisitorLogged(domain string) {
	visitorsLoggedTotal.WithLabelValues(SanitizeHost(domain)).Inc()
}

// ObserveVisitorWriteFailure counts a visitor row lost to a store error.
func ObserveVisitorWriteFailure() {
	visitorWriteFailuresTotal.Inc()
}

// ObserveLogQueryFailure counts a failed admin log query.
func ObserveLogQueryFailure() {
	logQueryFailuresTotal.Inc()
}

// ObservePassThrough counts a request handed to an active origin.
func ObservePassThrough(host string) {
	passThroughTotal.WithLabelValues(SanitizeHost(host)).Inc()
}
