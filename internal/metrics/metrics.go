// Package metrics exposes Prometheus collectors for the proxy.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Endpoint labels.
const (
	EndpointGenerate = "generateContent"
	EndpointStream   = "streamGenerateContent"
	EndpointModels   = "models"
	EndpointOpenAI   = "openai_models"
)

// Metrics records proxy traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streamLines     prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg returns nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigravity_requests_total",
				Help: "Proxied requests by endpoint and upstream status",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "antigravity_request_duration_seconds",
				Help:    "Time spent proxying a request",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		streamLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "antigravity_stream_lines_total",
			Help: "Server-sent event lines written to clients",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.streamLines)

	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// StreamLine counts one line written on a stream.
func (m *Metrics) StreamLine() {
	if m == nil {
		return
	}
	m.streamLines.Inc()
}
