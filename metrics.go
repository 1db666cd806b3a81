package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// Metrics groups the authorization collectors.
type Metrics struct {
	decisions   *prometheus.CounterVec
	roleChanges *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Permission guard decisions by check kind and outcome.",
		}, []string{"check", "outcome"}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "authz",
			Name:      "role_changes_total",
			Help:      "Role mutations by action and result.",
		}, []string{"action", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.roleChanges)
	}
	return m
}

func (m *Metrics) observeDecision(check, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) observeRoleChange(action AuditAction, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.roleChanges.WithLabelValues(string(action), result).Inc()
}
