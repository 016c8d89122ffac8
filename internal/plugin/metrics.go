// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the manager's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Plugins    *prometheus.GaugeVec
}

// NewMetrics creates the manager collectors and registers them with reg.
// Panics if registration fails.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terraplug_plugin_operations_total",
				Help: "Plugin lifecycle operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		Plugins: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "terraplug_plugins",
				Help: "Known plugins by state",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(m.Operations, m.Plugins)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) setStates(loaded, unloaded, broken int) {
	if m == nil {
		return
	}
	m.Plugins.WithLabelValues(StateLoaded.String()).Set(float64(loaded))
	m.Plugins.WithLabelValues(StateUnloaded.String()).Set(float64(unloaded))
	m.Plugins.WithLabelValues(StateBroken.String()).Set(float64(broken))
}
