package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amerta"

// Server records HTTP traffic per route pattern.
type Server struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewServer(reg prometheus.Registerer) *Server {
	if reg == nil {
		return &Server{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "route"})
	reg.MustRegister(requests, latency)
	return &Server{requests: requests, latency: latency}
}

func (s *Server) Observe(method, route string, status int, elapsed time.Duration) {
	if s == nil || s.requests == nil {
		return
	}
	route = normalizeLabel(route)
	s.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.latency.WithLabelValues(method, route).Observe(float64(elapsed.Milliseconds()))
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
