package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts coordinator activity. A nil *Metrics records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "art_session",
			Name:      "transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "art_session",
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "art_session",
			Name:      "verify_total",
			Help:      "Background profile verifications by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.transitions, m.refreshes, m.verifications)
	}
	return m
}

func (m *Metrics) transition(state string) {
	if m != nil {
		m.transitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) verify(result string) {
	if m != nil {
		m.verifications.WithLabelValues(result).Inc()
	}
}
