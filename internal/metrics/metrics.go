// Package metrics holds the prometheus collectors for the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "unity_mcp_build_info",
			Help:        "Build information for the bridge",
			ConstLabels: prometheus.Labels{"component": "bridge"},
		},
		[]string{"date", "sha", "version"},
	)

	clientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "unity_mcp_clients_connected",
			Help: "Number of editor clients currently connected",
		},
	)

	requestsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "unity_mcp_requests_inflight",
			Help: "Number of routed requests awaiting a response",
		},
	)

	requestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unity_mcp_requests_total",
			Help: "Total number of requests routed to editor clients",
		},
	)

	requestFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unity_mcp_request_failures_total",
			Help: "Total number of routed requests that failed, by reason",
		},
		[]string{"reason"},
	)

	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unity_mcp_request_duration_seconds",
			Help:    "Latency of routed requests",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers the bridge collectors with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, clientsConnected, requestsInflight, requestsTotal, requestFailuresTotal, requestDuration)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// SetClientsConnected records the current client count.
func SetClientsConnected(n int) { clientsConnected.Set(float64(n)) }

// RequestStart increments the in-flight gauge and the request counter.
func RequestStart() {
	requestsInflight.Inc()
	requestsTotal.Inc()
}

// RequestEnd decrements in-flight and records the outcome; reason is empty on
// success and one of "timeout", "disconnect", "write", "canceled" otherwise.
func RequestEnd(reason string, d time.Duration) {
	requestsInflight.Dec()
	requestDuration.Observe(d.Seconds())
	if reason != "" {
		requestFailuresTotal.WithLabelValues(reason).Inc()
	}
}
