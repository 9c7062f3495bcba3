package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the slot lifecycle.
type SchedulingMetrics struct {
	closuresTotal       *prometheus.CounterVec
	slotsChangedTotal   *prometheus.CounterVec
	cascadeFailures     prometheus.Counter
	queueNumbersIssued  prometheus.Counter
	collaboratorLatency *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		closuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "closure",
			Name:      "operations_total",
			Help:      "Total closure/reopen operations by type, action and outcome",
		}, []string{"operation_type", "action", "outcome"}),
		slotsChangedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "closure",
			Name:      "slots_changed_total",
			Help:      "Total slot status changes performed by closure operations",
		}, []string{"action"}),
		cascadeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "closure",
			Name:      "cascade_failures_total",
			Help:      "Per-slot cascade cancellations that failed",
		}),
		queueNumbersIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "queue",
			Name:      "numbers_issued_total",
			Help:      "Queue numbers issued across all rooms",
		}),
		collaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "collaborator",
			Name:      "call_latency_seconds",
			Help:      "Latency of synchronous collaborator calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.closuresTotal, m.slotsChangedTotal, m.cascadeFailures, m.queueNumbersIssued, m.collaboratorLatency)
	return m
}

func (m *SchedulingMetrics) ObserveClosure(operationType, action, outcome string) {
	if m == nil {
		return
	}
	m.closuresTotal.WithLabelValues(operationType, action, outcome).Inc()
}

func (m *SchedulingMetrics) AddSlotsChanged(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsChangedTotal.WithLabelValues(action).Add(float64(n))
}

func (m *SchedulingMetrics) ObserveCascadeFailure() {
	if m == nil {
		return
	}
	m.cascadeFailures.Inc()
}

func (m *SchedulingMetrics) ObserveQueueNumberIssued() {
	if m == nil {
		return
	}
	m.queueNumbersIssued.Inc()
}

func (m *SchedulingMetrics) ObserveCollaboratorLatency(service string, seconds float64) {
	if m == nil {
		return
	}
	m.collaboratorLatency.WithLabelValues(service).Observe(seconds)
}
