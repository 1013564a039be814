package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsDelivered    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	RetriesScheduled *prometheus.CounterVec
	JobsRecovered    prometheus.Counter
	DeliveryLatency  *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_jobs_delivered_total",
			Help: "Total number of successfully delivered jobs.",
		}, []string{"kind"}),

		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_jobs_failed_total",
			Help: "Total number of jobs that ended failed or exhausted.",
		}, []string{"kind", "state"}),

		RetriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_retries_scheduled_total",
			Help: "Total number of retry attempts scheduled after transient failures.",
		}, []string{"kind"}),

		JobsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_jobs_recovered_total",
			Help: "Total number of stuck in-flight jobs returned to pending by the sweeper.",
		}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_delivery_seconds",
			Help:    "Per-attempt delivery latency from claim to transport ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Current number of job ids waiting in the wake queue.",
		}),
	}

	reg.MustRegister(
		m.JobsDelivered,
		m.JobsFailed,
		m.RetriesScheduled,
		m.JobsRecovered,
		m.DeliveryLatency,
		m.QueueDepth,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so the worker package never
// imports prometheus.
func (m *Metrics) WorkerHooks() (
	onDelivered func(domain.Kind, time.Duration),
	onFailed func(domain.Kind, domain.State),
	onRetry func(domain.Kind),
) {
	onDelivered = func(k domain.Kind, latency time.Duration) {
		m.JobsDelivered.WithLabelValues(string(k)).Inc()
		m.DeliveryLatency.WithLabelValues(string(k)).Observe(latency.Seconds())
	}
	onFailed = func(k domain.Kind, s domain.State) {
		m.JobsFailed.WithLabelValues(string(k), string(s)).Inc()
	}
	onRetry = func(k domain.Kind) {
		m.RetriesScheduled.WithLabelValues(string(k)).Inc()
	}
	return
}
