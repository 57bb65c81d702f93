// Package metrics declares the Prometheus collectors exported at /metrics,
// named the way the teacher names its own (service-prefixed, grouped by
// HTTP vs domain concern).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceauth_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voiceauth_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	EnrollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceauth_enroll_total",
		Help: "Total enrollment attempts by outcome",
	}, []string{"outcome"})

	VerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceauth_verify_total",
		Help: "Total verification attempts by outcome",
	}, []string{"outcome"})

	VerifyScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceauth_verify_score",
		Help:    "Cosine similarity score for verification attempts that reached a comparison",
		Buckets: []float64{0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.82, 0.9, 0.95, 1.0},
	})

	EmbeddingRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceauth_embedding_request_duration_seconds",
		Help:    "Embedding extraction round-trip duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	})

	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceauth_capture_duration_seconds",
		Help:    "Live capture session wall-clock duration",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 20, 30, 40},
	})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voiceauth_embedding_circuit_breaker_state",
		Help: "Embedding client circuit breaker state: 0=closed, 1=open, 2=half_open",
	})
)
