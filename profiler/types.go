package profiler

import "time"

// ThermalState describes the host's thermal pressure as reported by the
// platform's telemetry.
type ThermalState int

const (
	ThermalNominal ThermalState = iota
	ThermalFair
	ThermalSerious
	ThermalCritical
)

func (ts ThermalState) String() string {
	switch ts {
	case ThermalNominal:
		return "nominal"
	case ThermalFair:
		return "fair"
	case ThermalSerious:
		return "serious"
	case ThermalCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PerformanceClass is a coarse tri-level classification of host compute
// capability derived from processor speed and memory size.
type PerformanceClass int

const (
	ClassLow PerformanceClass = iota
	ClassMedium
	ClassHigh
)

func (pc PerformanceClass) String() string {
	switch pc {
	case ClassLow:
		return "low"
	case ClassMedium:
		return "medium"
	case ClassHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Classification thresholds. A host is "high" class only when both its
// processor speed class and memory size clear the high-tier bars.
const (
	highSpeedClass    = 2.5
	mediumSpeedClass  = 1.5
	highMemoryBytes   = 4_000_000_000
	mediumMemoryBytes = 2_000_000_000

	// Battery level below which the host is considered throttled.
	lowBatteryLevel = 0.2
)

// DeviceProfile is an immutable snapshot of host hardware and environment
// conditions. Profiles are superseded by newer snapshots, never mutated.
type DeviceProfile struct {
	Model        string
	SpeedClass   float64
	MemoryBytes  int64
	Thermal      ThermalState
	BatteryLevel float64
	LowPowerMode bool
	CapturedAt   time.Time
}

// Class classifies the profile into a PerformanceClass from speed and
// memory thresholds.
func (p DeviceProfile) Class() PerformanceClass {
	switch {
	case p.SpeedClass > highSpeedClass && p.MemoryBytes > highMemoryBytes:
		return ClassHigh
	case p.SpeedClass > mediumSpeedClass && p.MemoryBytes > mediumMemoryBytes:
		return ClassMedium
	default:
		return ClassLow
	}
}

// Throttled reports whether the host is thermally, power- or
// battery-constrained. A throttled host forces conservative behavior
// irrespective of its raw performance class.
func (p DeviceProfile) Throttled() bool {
	if p.Thermal == ThermalSerious || p.Thermal == ThermalCritical {
		return true
	}
	if p.LowPowerMode {
		return true
	}
	return p.BatteryLevel < lowBatteryLevel
}

// Signals carries the raw hardware/environment readings supplied by a
// TelemetryProvider. The provider is the only effectful edge of the
// profiler; everything derived from Signals is pure.
type Signals struct {
	Model        string
	SpeedClass   float64
	MemoryBytes  int64
	Thermal      ThermalState
	BatteryLevel float64
	LowPowerMode bool
}
