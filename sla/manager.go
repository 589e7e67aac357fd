// Package sla tracks whether a configured service-level target is being
// met and auto-escalates or de-escalates that target over time with
// hysteresis.
package sla

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/yunusovt983/adaptivegov/config"
	"github.com/yunusovt983/adaptivegov/profiler"
	"github.com/yunusovt983/adaptivegov/telemetry"
)

var log = logging.Logger("adaptivegov/sla")

// Monitor receives recalculated thresholds on every level change.
type Monitor interface {
	UpdateThresholds(responseTime time.Duration, cpu, memory, errorRate float64)
}

// BudgetCalculator recalculates external budgets when the service level
// changes. The factor is the ratio of the new level's budget adjustment
// factor to the old one's. Failures are logged and never block the level
// change; the level and the budget are independently owned facts.
type BudgetCalculator interface {
	RecalculateBudgets(ctx context.Context, factor float64) error
}

// ProfileSource supplies the latest device profile for achievability
// validation. *governor.Governor implements it.
type ProfileSource interface {
	Profile() (profiler.DeviceProfile, bool)
}

// Handle identifies a registered monitor for later unregistration.
type Handle uint64

// Manager owns the current service level, a bounded history of
// achievement samples, and the registry of threshold monitors.
type Manager struct {
	cfg      config.SLAConfig
	budget   BudgetCalculator
	profiles ProfileSource
	sink     telemetry.Sink
	mtr      *telemetry.Metrics

	mu         sync.Mutex
	level      Level
	multiplier float64
	history    []AchievementSample
	monitors   map[Handle]Monitor
	nextHandle Handle
}

// NewManager creates an SLA manager starting at the configured initial
// level. budget, profiles and sink may be nil.
func NewManager(cfg config.SLAConfig, budget BudgetCalculator, profiles ProfileSource, sink telemetry.Sink, mtr *telemetry.Metrics) *Manager {
	if sink == nil {
		sink = telemetry.Nop()
	}
	level, ok := ParseLevel(cfg.InitialLevel)
	if !ok {
		log.Warnw("unknown initial SLA level, falling back to balanced", "level", cfg.InitialLevel)
	}
	return &Manager{
		cfg:        cfg,
		budget:     budget,
		profiles:   profiles,
		sink:       sink,
		mtr:        mtr,
		level:      level,
		multiplier: 1.0,
		monitors:   make(map[Handle]Monitor),
	}
}

// RegisterMonitor adds a threshold monitor and immediately pushes the
// current thresholds to it. The returned handle unregisters it.
func (m *Manager) RegisterMonitor(mon Monitor) Handle {
	m.mu.Lock()
	m.nextHandle++
	h := m.nextHandle
	m.monitors[h] = mon
	t := m.effectiveTargetsLocked()
	m.mu.Unlock()

	mon.UpdateThresholds(t.MaxResponseTime, t.MaxCPU, t.MaxMemory, t.MaxErrorRate)
	return h
}

// UnregisterMonitor removes a previously registered monitor.
func (m *Manager) UnregisterMonitor(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.monitors, h)
}

// Level returns the current service level.
func (m *Manager) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// History returns a copy of the achievement history, oldest first.
func (m *Manager) History() []AchievementSample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AchievementSample, len(m.history))
	copy(out, m.history)
	return out
}

// RollingAchievement returns the mean achievement rate over the
// evaluation window, and the number of samples it covers.
func (m *Manager) RollingAchievement() (float64, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollingAchievementLocked()
}

// SetSLAMultiplier receives the multiplier of newly applied optimization
// settings and pushes the rescaled thresholds to all monitors. It
// implements the governor's MultiplierConsumer.
func (m *Manager) SetSLAMultiplier(multiplier float64) {
	if multiplier <= 0 {
		multiplier = 1.0
	}

	m.mu.Lock()
	m.multiplier = multiplier
	monitors, targets := m.monitorsAndTargetsLocked()
	m.mu.Unlock()

	pushThresholds(monitors, targets)
}

// RecordMetrics evaluates one measurement against the current level's
// targets, appends the sample to the bounded history and runs the
// hysteresis-based auto-adjustment.
func (m *Manager) RecordMetrics(ctx context.Context, responseTime time.Duration, cpu, memory, errorRate float64) {
	m.mu.Lock()

	targets := m.effectiveTargetsLocked()
	met := 0
	if responseTime <= targets.MaxResponseTime {
		met++
	}
	if cpu <= targets.MaxCPU {
		met++
	}
	if memory <= targets.MaxMemory {
		met++
	}
	if errorRate <= targets.MaxErrorRate {
		met++
	}

	sample := AchievementSample{
		Level:        m.level,
		ResponseTime: responseTime,
		CPU:          cpu,
		Memory:       memory,
		ErrorRate:    errorRate,
		Rate:         float64(met) / 4.0,
		At:           time.Now(),
	}
	m.history = append(m.history, sample)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}

	rolling, samples := m.rollingAchievementLocked()
	current := m.level

	target := current
	if samples >= m.cfg.MinSamples {
		switch {
		case rolling < m.cfg.DowngradeBelow && current != LevelConservative:
			target = current - 1
		case rolling > m.cfg.UpgradeAbove && current != LevelAggressive:
			target = current + 1
		}
	}
	m.mu.Unlock()

	m.mtr.ObserveAchievement(rolling)

	if target != current {
		m.changeLevel(ctx, current, target, "auto", rolling)
	}
}

// SetLevel applies an explicit service-level override. Achievability is
// validated against the latest device profile; warnings are reported but
// never block the change. Unknown levels are rejected and not applied.
func (m *Manager) SetLevel(ctx context.Context, level Level) {
	if !level.valid() {
		log.Warnw("rejecting unknown SLA level", "level", int(level))
		return
	}

	warnings := m.achievabilityWarnings(level)
	for _, w := range warnings {
		log.Warnw("SLA achievability concern", "level", level.String(), "warning", w)
	}
	if len(warnings) > 0 {
		m.sink.Publish(telemetry.Event{
			Type:    telemetry.EventSLAWarning,
			Message: fmt.Sprintf("SLA level %s may not be achievable", level),
			Fields: map[string]interface{}{
				"level":    level.String(),
				"warnings": warnings,
			},
			Timestamp: time.Now(),
		})
	}

	m.mu.Lock()
	current := m.level
	m.mu.Unlock()

	m.changeLevel(ctx, current, level, "manual", 0)
}

// achievabilityWarnings inspects the latest device profile for conditions
// under which the requested level is unlikely to be met.
func (m *Manager) achievabilityWarnings(level Level) []string {
	if m.profiles == nil {
		return nil
	}
	p, ok := m.profiles.Profile()
	if !ok {
		return nil
	}

	var warnings []string
	if p.Thermal == profiler.ThermalSerious || p.Thermal == profiler.ThermalCritical {
		warnings = append(warnings, "device is thermally throttled")
	}
	if p.LowPowerMode {
		warnings = append(warnings, "device is in low-power mode")
	}
	if p.BatteryLevel < 0.2 {
		warnings = append(warnings, "battery level is low")
	}
	if p.MemoryBytes > 0 && p.MemoryBytes < 2_000_000_000 {
		warnings = append(warnings, "device memory is constrained")
	}
	if level == LevelAggressive && p.Class() == profiler.ClassLow {
		warnings = append(warnings, "aggressive targets on a low-performance-class device")
	}
	return warnings
}

// changeLevel swaps the level, recalculates budgets by the ratio of the
// budget adjustment factors and pushes new thresholds to every monitor.
// Budget failures are logged; the level change still takes effect.
func (m *Manager) changeLevel(ctx context.Context, from, to Level, reason string, rolling float64) {
	m.mu.Lock()
	if m.level == to {
		// Nothing to change: either the request named the current level
		// or a racing change already landed on it. No budget recalc, no
		// event.
		m.mu.Unlock()
		return
	}
	if m.level != from {
		// Lost a race with another change; re-read and continue, the last
		// writer wins.
		from = m.level
	}
	m.level = to
	monitors, targets := m.monitorsAndTargetsLocked()
	m.mu.Unlock()

	if m.budget != nil {
		ratio := TargetsFor(to).BudgetFactor / TargetsFor(from).BudgetFactor
		if err := m.budget.RecalculateBudgets(ctx, ratio); err != nil {
			log.Errorw("budget recalculation failed",
				"from", from.String(), "to", to.String(), "error", err)
		}
	}

	pushThresholds(monitors, targets)

	m.mtr.ObserveSLALevel(int(to))

	m.sink.Publish(telemetry.Event{
		Type:    telemetry.EventSLAChange,
		Message: fmt.Sprintf("SLA level changed from %s to %s", from, to),
		Fields: map[string]interface{}{
			"from":    from.String(),
			"to":      to.String(),
			"reason":  reason,
			"rolling": rolling,
		},
		Timestamp: time.Now(),
	})

	log.Infow("SLA level changed",
		"from", from.String(), "to", to.String(), "reason", reason)
}

// effectiveTargetsLocked returns the current level's targets with the
// response-time ceiling relaxed by the governor-supplied multiplier.
func (m *Manager) effectiveTargetsLocked() Targets {
	t := TargetsFor(m.level)
	t.MaxResponseTime = time.Duration(float64(t.MaxResponseTime) * m.multiplier)
	return t
}

func (m *Manager) monitorsAndTargetsLocked() ([]Monitor, Targets) {
	monitors := make([]Monitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		monitors = append(monitors, mon)
	}
	return monitors, m.effectiveTargetsLocked()
}

func (m *Manager) rollingAchievementLocked() (float64, int) {
	window := m.cfg.EvaluationWindow
	if window > len(m.history) {
		window = len(m.history)
	}
	if window == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, s := range m.history[len(m.history)-window:] {
		sum += s.Rate
	}
	return sum / float64(window), window
}

func pushThresholds(monitors []Monitor, t Targets) {
	for _, mon := range monitors {
		mon.UpdateThresholds(t.MaxResponseTime, t.MaxCPU, t.MaxMemory, t.MaxErrorRate)
	}
}
