package server

import (
	"time"

	"github.com/google/go-cvm-attestation/client"
	"github.com/prometheus/client_golang/prometheus"
)

const resultOK = "ok"

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvmattest",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Attestation requests by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cvmattest",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Attestation request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// observe records a request. Failed requests are labelled with their kind.
func (m *metrics) observe(operation string, err error, elapsed time.Duration) {
	result := resultOK
	if err != nil {
		result = client.KindOf(err).String()
	}
	m.requests.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
