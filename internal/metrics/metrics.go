// Package metrics exposes Prometheus counters for moderation outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modguard"

// Metrics holds the bot's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions  *prometheus.CounterVec
	violations *prometheus.CounterVec
	commands   *prometheus.CounterVec
	updates    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Moderation decisions by kind.",
		}, []string{"kind"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Content policy violations by tag.",
		}, []string{"tag"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Moderation commands by name and outcome.",
		}, []string{"command", "outcome"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.violations, m.commands, m.updates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Decision(kind string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind).Inc()
}

func (m *Metrics) Violation(tag string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(tag).Inc()
}

func (m *Metrics) Command(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

// Update counts a processed, duplicate, ignored or failed update.
func (m *Metrics) Update(result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(result).Inc()
}
