package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Labels: method, route (gin full path), status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmemory_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackmemory_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Labels: op (add_task, patch_task, ...), outcome (ok, not_found, validation, conflict, error).
	routeMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmemory_route_mutations_total",
			Help: "Total number of route document mutations",
		},
		[]string{"op", "outcome"},
	)

	// Labels: outcome (accessible, http_error, timeout, network_error).
	probeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmemory_quality_gate_probes_total",
			Help: "Total number of material url probes",
		},
		[]string{"outcome"},
	)

	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackmemory_quality_gate_probe_duration_seconds",
			Help:    "Duration of material url probes in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Labels: op (roadmap, cards), status (ok, error).
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmemory_llm_calls_total",
			Help: "Total number of LLM chat completion calls",
		},
		[]string{"op", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(routeMutationsTotal)
	prometheus.MustRegister(probeTotal)
	prometheus.MustRegister(probeDuration)
	prometheus.MustRegister(llmCallsTotal)
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordRouteMutation(op, outcome string) {
	routeMutationsTotal.WithLabelValues(op, outcome).Inc()
}

func RecordProbe(outcome string, d time.Duration) {
	probeTotal.WithLabelValues(outcome).Inc()
	probeDuration.Observe(d.Seconds())
}

func RecordLLMCall(op, status string) {
	llmCallsTotal.WithLabelValues(op, status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
