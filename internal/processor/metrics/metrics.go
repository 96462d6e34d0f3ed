package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Received            prometheus.Counter
	Completed           *prometheus.CounterVec
	Halted              *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	MatcherFailures     *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	AggregationTimeouts prometheus.Counter
	LateMessages        prometheus.Counter
	InFlight            prometheus.Gauge
}

// New registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestclient_submissions_received_total",
			Help: "Submissions accepted for processing",
		}),
		Completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forestclient_submissions_completed_total",
			Help: "Submissions that reached a decision, by outcome",
		}, []string{"outcome"}),
		Halted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forestclient_submissions_halted_total",
			Help: "Submissions halted by a structural failure, by stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forestclient_pipeline_stage_duration_seconds",
			Help:    "Time spent handling one message in a pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		MatcherFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forestclient_matcher_failures_total",
			Help: "Matcher lookups that degraded to an empty result, by field",
		}, []string{"field"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forestclient_notifications_failed_total",
			Help: "Notifications queued for resend, by template",
		}, []string{"template"}),
		AggregationTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestclient_aggregation_timeouts_total",
			Help: "Branch groups released partially after the aggregation timeout",
		}),
		LateMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestclient_aggregation_late_messages_total",
			Help: "Branch results dropped because their group was already released",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forestclient_submissions_in_flight",
			Help: "Submissions currently inside the pipeline",
		}),
	}
}

func (m *Metrics) IncReceived() {
	if m != nil {
		m.Received.Inc()
		m.InFlight.Inc()
	}
}

// IncCompleted records a decided submission leaving the pipeline.
func (m *Metrics) IncCompleted(outcome string) {
	if m != nil {
		m.Completed.WithLabelValues(outcome).Inc()
		m.InFlight.Dec()
	}
}

// IncHalted records a submission leaving the pipeline without a decision.
func (m *Metrics) IncHalted(stage string) {
	if m != nil {
		m.Halted.WithLabelValues(stage).Inc()
		m.InFlight.Dec()
	}
}

// IncSkipped records a submission that entered the pipeline but was not processable.
func (m *Metrics) IncSkipped() {
	if m != nil {
		m.InFlight.Dec()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncMatcherFailure(field string) {
	if m != nil {
		m.MatcherFailures.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) IncNotificationFailed(template string) {
	if m != nil {
		m.NotificationsFailed.WithLabelValues(template).Inc()
	}
}

func (m *Metrics) IncAggregationTimeout() {
	if m != nil {
		m.AggregationTimeouts.Inc()
	}
}

func (m *Metrics) IncLateMessage() {
	if m != nil {
		m.LateMessages.Inc()
	}
}
