package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the governance subsystem's state to Prometheus. All
// methods are safe on a nil receiver so instrumented components can treat
// metrics as optional.
type Metrics struct {
	tier                 prometheus.Gauge
	tierTransitions      prometheus.Counter
	emergencyActivations prometheus.Counter
	slaLevel             prometheus.Gauge
	slaAchievement       prometheus.Gauge
	slaAdjustments       prometheus.Counter
}

// NewMetrics registers the governance metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tier: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adaptivegov_optimization_tier",
			Help: "Current optimization tier (0=conservative, 1=balanced, 2=high_performance, 3=emergency)",
		}),
		tierTransitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "adaptivegov_tier_transitions_total",
			Help: "Total number of optimization tier transitions",
		}),
		emergencyActivations: factory.NewCounter(prometheus.CounterOpts{
			Name: "adaptivegov_emergency_activations_total",
			Help: "Total number of emergency throttle activations",
		}),
		slaLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adaptivegov_sla_level",
			Help: "Current SLA level (0=conservative, 1=balanced, 2=aggressive)",
		}),
		slaAchievement: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adaptivegov_sla_rolling_achievement",
			Help: "Rolling SLA achievement rate over the evaluation window",
		}),
		slaAdjustments: factory.NewCounter(prometheus.CounterOpts{
			Name: "adaptivegov_sla_adjustments_total",
			Help: "Total number of SLA level adjustments, automatic or manual",
		}),
	}
}

// ObserveTier records the current optimization tier.
func (m *Metrics) ObserveTier(tier int) {
	if m == nil {
		return
	}
	m.tier.Set(float64(tier))
	m.tierTransitions.Inc()
}

// ObserveEmergency records an emergency throttle activation.
func (m *Metrics) ObserveEmergency() {
	if m == nil {
		return
	}
	m.emergencyActivations.Inc()
}

// ObserveSLALevel records the current SLA level.
func (m *Metrics) ObserveSLALevel(level int) {
	if m == nil {
		return
	}
	m.slaLevel.Set(float64(level))
	m.slaAdjustments.Inc()
}

// ObserveAchievement records the rolling SLA achievement rate.
func (m *Metrics) ObserveAchievement(rate float64) {
	if m == nil {
		return
	}
	m.slaAchievement.Set(rate)
}
