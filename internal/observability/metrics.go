package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "morphgrid",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "morphgrid",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)

	transportConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "morphgrid",
			Subsystem: "transport",
			Name:      "connections",
			Help:      "Currently registered connections per transport service.",
		},
		[]string{"service", "role"},
	)
	transportFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "morphgrid",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Frames processed per transport service, by direction and outcome.",
		},
		[]string{"service", "direction", "outcome"},
	)
	transportReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "morphgrid",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Client reconnect attempts per service.",
		},
		[]string{"service"},
	)

	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "morphgrid",
			Subsystem: "jobqueue",
			Name:      "enqueued_total",
			Help:      "Jobs submitted to the queue, by outcome.",
		},
		[]string{"outcome"},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "morphgrid",
			Subsystem: "jobqueue",
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers every collector with the default Prometheus
// registry. Safe to call repeatedly; only the first call has effect.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			transportConnections, transportFrames, transportReconnects,
			jobsEnqueued, jobDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// SetTransportConnections records the current registry size for a
// transport service (spec.md §4.3 Snapshot/Count).
func SetTransportConnections(service, role string, count int) {
	RegisterMetrics()
	transportConnections.WithLabelValues(service, role).Set(float64(count))
}

// RecordTransportFrame records one frame outcome ("ok", "frame_too_large",
// "read_error", "timeout", "peer_closed") in a given direction ("read" or
// "write") for a service.
func RecordTransportFrame(service, direction, outcome string) {
	RegisterMetrics()
	transportFrames.WithLabelValues(service, direction, outcome).Inc()
}

// RecordTransportReconnect records one client supervisor reconnect attempt.
func RecordTransportReconnect(service string) {
	RegisterMetrics()
	transportReconnects.WithLabelValues(service).Inc()
}

// RecordJobEnqueued records one job submission outcome ("accepted",
// "duplicate", "rejected").
func RecordJobEnqueued(outcome string) {
	RegisterMetrics()
	jobsEnqueued.WithLabelValues(outcome).Inc()
}

// RecordJobDuration records one job's terminal execution time, labeled by
// outcome ("success" or "failure").
func RecordJobDuration(outcome string, duration time.Duration) {
	RegisterMetrics()
	jobDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
