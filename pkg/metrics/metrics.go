package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IncomingRequestCount is the total number of Fast requests accepted
	// by the dispatcher.
	IncomingRequestCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "incoming_request_count",
			Help: "Total number of Fast requests handled.",
		},
	)

	// MetricsRequestCount is the total number of scrapes of this
	// process's own /metrics endpoint.
	MetricsRequestCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metrics_request_count",
			Help: "Total number of metrics requests received.",
		},
	)

	// FastRequests is the latency of a Fast request from dispatch through
	// connection claim and handler return (reply encoding is not
	// included), keyed by RPC method and whether it succeeded.
	FastRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fast_requests",
			Help:    "Latency of all fast requests processed.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "success"},
	)

	// PostgresRequests is the latency of a single SQL gateway call, keyed
	// by the logical gateway Method and whether it succeeded.
	PostgresRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postgres_requests",
			Help:    "Latency of all postgres requests processed.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "success"},
	)

	// ConnectionClaimTimes is the latency of claiming a pooled connection
	// from the external pool collaborator, keyed by whether the claim
	// succeeded before the configured claim timeout.
	ConnectionClaimTimes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connection_claim_times",
			Help:    "Latency of connection pool claim attempts.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"success"},
	)
)

func init() {
	prometheus.MustRegister(IncomingRequestCount)
	prometheus.MustRegister(MetricsRequestCount)
	prometheus.MustRegister(FastRequests)
	prometheus.MustRegister(PostgresRequests)
	prometheus.MustRegister(ConnectionClaimTimes)
}

// Handler returns the Prometheus HTTP handler, counting every request it
// serves into MetricsRequestCount.
func Handler() http.Handler {
	h := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MetricsRequestCount.Inc()
		h.ServeHTTP(w, r)
	})
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Success renders a bool as the "true"/"false" label value these
// histograms use.
func Success(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
