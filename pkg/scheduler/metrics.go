package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so tests and embedded callers can skip
// registration entirely.
type Metrics struct {
	admissions       *prometheus.CounterVec
	executions       *prometheus.CounterVec
	tokensRecorded   *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	executionSeconds prometheus.Histogram
}

// NewMetrics registers the scheduler collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskwarden_admissions_total",
			Help: "Admission decisions by category and outcome.",
		}, []string{"category", "decision"}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskwarden_executions_total",
			Help: "Finished task executions by terminal status.",
		}, []string{"status"}),
		tokensRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskwarden_tokens_recorded_total",
			Help: "Actual tokens recorded to the usage ledger by category.",
		}, []string{"category"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskwarden_queue_depth",
			Help: "Number of tasks waiting in the pending queue.",
		}),
		executionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskwarden_execution_seconds",
			Help:    "Wall-clock task execution time.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *Metrics) Admission(category string, admitted bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if admitted {
		decision = "admitted"
	}
	m.admissions.WithLabelValues(category, decision).Inc()
}

func (m *Metrics) Execution(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(status).Inc()
	m.executionSeconds.Observe(d.Seconds())
}

func (m *Metrics) TokensRecorded(category string, tokens int) {
	if m == nil {
		return
	}
	m.tokensRecorded.WithLabelValues(category).Add(float64(tokens))
}

func (m *Metrics) QueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
