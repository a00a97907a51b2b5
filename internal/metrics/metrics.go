package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Transitions *prometheus.CounterVec
	Integrity   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, service string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jojoshop",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jojoshop",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jojoshop",
			Subsystem: service,
			Name:      "order_transitions_total",
			Help:      "Order lifecycle operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Integrity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jojoshop",
			Subsystem: service,
			Name:      "integrity_signals_total",
			Help:      "Amount mismatches and corrupt order states observed.",
		}, []string{"signal"}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Transitions, m.Integrity)
	return m
}

// Transition counts one lifecycle operation. outcome is "applied", "noop" or an error kind.
func (m *Metrics) Transition(operation, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
}

// IntegritySignal counts one integrity signal.
func (m *Metrics) IntegritySignal(signal string) {
	if m == nil {
		return
	}
	m.Integrity.WithLabelValues(signal).Inc()
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler exposes the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
