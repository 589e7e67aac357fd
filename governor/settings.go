package governor

import (
	"time"

	"github.com/yunusovt983/adaptivegov/profiler"
)

// Feature names an optional capability that the governor can enable or
// disable as host conditions change.
type Feature string

const (
	FeaturePrefetch          Feature = "prefetch"
	FeatureBackgroundSync    Feature = "background-sync"
	FeatureCompression       Feature = "compression"
	FeatureSpeculativeLoad   Feature = "speculative-load"
	FeatureDetailedTelemetry Feature = "detailed-telemetry"
)

// AllFeatures lists every feature the governor manages.
func AllFeatures() []Feature {
	return []Feature{
		FeaturePrefetch,
		FeatureBackgroundSync,
		FeatureCompression,
		FeatureSpeculativeLoad,
		FeatureDetailedTelemetry,
	}
}

// Tier names an operating mode. Each tier is a fixed bundle of feature
// set, cache capacity, concurrency and refresh cadence. TierEmergency is a
// pseudo-tier reachable only from critical thermal conditions.
type Tier int

const (
	TierConservative Tier = iota
	TierBalanced
	TierHighPerformance
	TierEmergency
)

func (t Tier) String() string {
	switch t {
	case TierConservative:
		return "conservative"
	case TierBalanced:
		return "balanced"
	case TierHighPerformance:
		return "high_performance"
	case TierEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

func (t Tier) valid() bool {
	return t >= TierConservative && t <= TierEmergency
}

// OptimizationSettings is the complete operating policy for one tier.
// Exactly one instance is current per governor at any time; settings are
// replaced wholesale on every adjustment, never patched field by field.
type OptimizationSettings struct {
	Tier             Tier
	EnabledFeatures  map[Feature]bool
	CacheItemLimit   int
	CacheByteLimit   int64
	SLAMultiplier    float64
	MaxConcurrentOps int
	RefreshInterval  time.Duration
}

// Enabled reports whether the feature is on under these settings.
func (s OptimizationSettings) Enabled(f Feature) bool {
	return s.EnabledFeatures[f]
}

func featureSet(features ...Feature) map[Feature]bool {
	set := make(map[Feature]bool, len(features))
	for _, f := range features {
		set[f] = true
	}
	return set
}

// SettingsForTier returns a fresh settings bundle for the tier. The map is
// newly allocated on every call so a published bundle is never aliased.
func SettingsForTier(t Tier) OptimizationSettings {
	switch t {
	case TierHighPerformance:
		return OptimizationSettings{
			Tier:             TierHighPerformance,
			EnabledFeatures:  featureSet(AllFeatures()...),
			CacheItemLimit:   1000,
			CacheByteLimit:   64 << 20,
			SLAMultiplier:    1.0,
			MaxConcurrentOps: 10,
			RefreshInterval:  100 * time.Millisecond,
		}
	case TierBalanced:
		return OptimizationSettings{
			Tier:             TierBalanced,
			EnabledFeatures:  featureSet(FeaturePrefetch, FeatureBackgroundSync, FeatureCompression),
			CacheItemLimit:   500,
			CacheByteLimit:   32 << 20,
			SLAMultiplier:    1.5,
			MaxConcurrentOps: 5,
			RefreshInterval:  500 * time.Millisecond,
		}
	case TierEmergency:
		return OptimizationSettings{
			Tier:             TierEmergency,
			EnabledFeatures:  featureSet(),
			CacheItemLimit:   50,
			CacheByteLimit:   4 << 20,
			SLAMultiplier:    3.0,
			MaxConcurrentOps: 1,
			RefreshInterval:  5 * time.Second,
		}
	default:
		return OptimizationSettings{
			Tier:             TierConservative,
			EnabledFeatures:  featureSet(FeatureCompression, FeatureDetailedTelemetry),
			CacheItemLimit:   100,
			CacheByteLimit:   8 << 20,
			SLAMultiplier:    2.0,
			MaxConcurrentOps: 2,
			RefreshInterval:  time.Second,
		}
	}
}

// TierForProfile maps a device profile to its target tier. A throttled
// host always maps to the conservative tier regardless of its raw
// performance class.
func TierForProfile(p profiler.DeviceProfile) Tier {
	if p.Throttled() {
		return TierConservative
	}
	switch p.Class() {
	case profiler.ClassHigh:
		return TierHighPerformance
	case profiler.ClassMedium:
		return TierBalanced
	default:
		return TierConservative
	}
}
