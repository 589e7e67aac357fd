// Package profiler samples host hardware and environment signals and
// classifies them into coarse performance classes for the governor.
package profiler

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("adaptivegov/profiler")

// TelemetryProvider supplies raw hardware/environment signals on demand.
// Implementations are expected to be fallible: a failed or partial read
// returns an error and the profiler degrades to its last known profile.
type TelemetryProvider interface {
	ReadSignals(ctx context.Context) (Signals, error)
}

// Profiler turns raw telemetry into immutable DeviceProfile snapshots.
// Profiling never fails from the caller's point of view: sensing errors
// fall back to the last known profile, or to a conservative default when
// nothing has been sampled yet.
type Profiler struct {
	mu       sync.RWMutex
	provider TelemetryProvider
	last     DeviceProfile
	hasLast  bool
	battery  *SignalHistory
}

// NewProfiler creates a profiler backed by the given telemetry provider.
func NewProfiler(provider TelemetryProvider) *Profiler {
	return &Profiler{
		provider: provider,
		battery:  NewSignalHistory(100),
	}
}

// DefaultProfile returns the conservative profile used when no telemetry
// has ever been available. It classifies low and is not throttled.
func DefaultProfile() DeviceProfile {
	return DeviceProfile{
		Model:        "unknown",
		SpeedClass:   1.0,
		MemoryBytes:  1 << 30,
		Thermal:      ThermalNominal,
		BatteryLevel: 0.5,
		CapturedAt:   time.Now(),
	}
}

// Profile samples the telemetry provider and returns a fresh snapshot.
// It has no failure path; see ProfileChecked for the degraded-read signal.
func (pr *Profiler) Profile(ctx context.Context) DeviceProfile {
	p, _ := pr.ProfileChecked(ctx)
	return p
}

// ProfileChecked samples the telemetry provider and returns a usable
// profile in all cases. The returned error reports a degraded read: the
// profile is then the last known snapshot (or the conservative default)
// rather than fresh data.
func (pr *Profiler) ProfileChecked(ctx context.Context) (DeviceProfile, error) {
	sig, err := pr.provider.ReadSignals(ctx)
	if err != nil {
		pr.mu.RLock()
		last, ok := pr.last, pr.hasLast
		pr.mu.RUnlock()

		log.Warnw("telemetry read failed, using fallback profile",
			"error", err, "have_last_profile", ok)
		if ok {
			return last, err
		}
		return DefaultProfile(), err
	}

	profile := profileFromSignals(sig)

	pr.mu.Lock()
	pr.last = profile
	pr.hasLast = true
	pr.battery.Add(profile.CapturedAt, profile.BatteryLevel)
	pr.mu.Unlock()

	return profile, nil
}

// Last returns the most recent successfully sampled profile, if any.
func (pr *Profiler) Last() (DeviceProfile, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.last, pr.hasLast
}

// BatteryTrend returns the trend direction and slope of the sampled
// battery level history.
func (pr *Profiler) BatteryTrend() (string, float64) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.battery.Trend()
}

func profileFromSignals(sig Signals) DeviceProfile {
	p := DeviceProfile{
		Model:        sig.Model,
		SpeedClass:   sig.SpeedClass,
		MemoryBytes:  sig.MemoryBytes,
		Thermal:      sig.Thermal,
		BatteryLevel: sig.BatteryLevel,
		LowPowerMode: sig.LowPowerMode,
		CapturedAt:   time.Now(),
	}
	if p.Model == "" {
		p.Model = "unknown"
	}
	if p.BatteryLevel < 0 {
		p.BatteryLevel = 0
	} else if p.BatteryLevel > 1 {
		p.BatteryLevel = 1
	}
	if p.SpeedClass < 0 {
		p.SpeedClass = 0
	}
	if p.MemoryBytes < 0 {
		p.MemoryBytes = 0
	}
	return p
}
