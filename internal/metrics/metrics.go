package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters for questionnaire flows.
type IntakeMetrics struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	records     *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "conversation",
			Name:      "transitions_total",
			Help:      "Questionnaire step transitions",
		}, []string{"from", "to"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "conversation",
			Name:      "outcomes_total",
			Help:      "Questionnaires started, completed or cancelled",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Reviewer report deliveries",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "records",
			Name:      "writes_total",
			Help:      "Record store writes",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.outcomes, m.deliveries, m.records)
	return m
}

func (m *IntakeMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *IntakeMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) ObserveDelivery(ok bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(status(ok)).Inc()
}

func (m *IntakeMetrics) ObserveRecord(ok bool) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(status(ok)).Inc()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
