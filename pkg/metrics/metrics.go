package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docslot"

// SchedulerMetrics exposes counters and histograms for booking allocation and availability.
// A nil *SchedulerMetrics is valid and records nothing.
type SchedulerMetrics struct {
	bookingRequests *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	lockWait        *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	kafkaMessages   *prometheus.CounterVec
	kafkaLatency    *prometheus.HistogramVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		bookingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "booking_requests_total",
			Help:      "Booking requests by outcome (created or error code)",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "transitions_total",
			Help:      "Booking status transitions by source, target and outcome",
		}, []string{"from", "to", "outcome"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring the per doctor and date lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"backend"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "cache_requests_total",
			Help:      "Availability cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		kafkaMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Kafka messages by direction and status",
		}, []string{"direction", "status"}),
		kafkaLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "message_duration_seconds",
			Help:      "Publish or handle latency of Kafka messages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingRequests, m.transitions, m.lockWait, m.cacheRequests, m.kafkaMessages, m.kafkaLatency)
	return m
}

func (m *SchedulerMetrics) ObserveBookingRequest(outcome string) {
	if m == nil {
		return
	}
	m.bookingRequests.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) ObserveTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, outcome).Inc()
}

func (m *SchedulerMetrics) ObserveLockWait(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *SchedulerMetrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

func (m *SchedulerMetrics) ObserveKafka(direction string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.kafkaMessages.WithLabelValues(direction, status).Inc()
	m.kafkaLatency.WithLabelValues(direction).Observe(d.Seconds())
}
