// Package metrics exports simulation activity as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tart"

// Metrics implements game.Observer.
type Metrics struct {
	created     *prometheus.CounterVec
	simulations prometheus.Gauge
	ticks       *prometheus.CounterVec
	simulated   *prometheus.CounterVec
	choices     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_created_total",
			Help:      "Simulations created, by model.",
		}, []string{"model"}),
		simulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulations",
			Help:      "Live simulations held by the registry.",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Successful ticks, by model.",
		}, []string{"model"}),
		simulated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_seconds_total",
			Help:      "Simulation seconds advanced by ticks, by model.",
		}, []string{"model"}),
		choices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "choices_total",
			Help:      "Purchase attempts, by model and result (applied|rejected).",
		}, []string{"model", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.simulations, m.ticks, m.simulated, m.choices)
	}
	return m
}

func (m *Metrics) SimulationCreated(model string) {
	m.created.WithLabelValues(model).Inc()
	m.simulations.Inc()
}

func (m *Metrics) Ticked(model string, delta float64) {
	m.ticks.WithLabelValues(model).Inc()
	m.simulated.WithLabelValues(model).Add(delta)
}

func (m *Metrics) ChoiceTried(model string, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	m.choices.WithLabelValues(model, result).Inc()
}
