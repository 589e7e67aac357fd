package sla

import "time"

// Level names a service-level target bundle. Auto-adjustment steps one
// level at a time between Conservative and Aggressive.
type Level int

const (
	LevelConservative Level = iota
	LevelBalanced
	LevelAggressive
)

func (l Level) String() string {
	switch l {
	case LevelConservative:
		return "conservative"
	case LevelBalanced:
		return "balanced"
	case LevelAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

func (l Level) valid() bool {
	return l >= LevelConservative && l <= LevelAggressive
}

// ParseLevel maps a level name to its Level, reporting whether the name
// was recognized.
func ParseLevel(name string) (Level, bool) {
	switch name {
	case "conservative":
		return LevelConservative, true
	case "balanced":
		return LevelBalanced, true
	case "aggressive":
		return LevelAggressive, true
	default:
		return LevelBalanced, false
	}
}

// Targets is the fixed threshold bundle carried by a service level.
type Targets struct {
	MaxResponseTime time.Duration
	MaxCPU          float64 // fraction of capacity, 0..1
	MaxMemory       float64 // fraction of capacity, 0..1
	MaxErrorRate    float64
	BudgetFactor    float64
}

// TargetsFor returns the threshold bundle for a level.
func TargetsFor(l Level) Targets {
	switch l {
	case LevelAggressive:
		return Targets{
			MaxResponseTime: 100 * time.Millisecond,
			MaxCPU:          0.5,
			MaxMemory:       0.6,
			MaxErrorRate:    0.01,
			BudgetFactor:    1.5,
		}
	case LevelConservative:
		return Targets{
			MaxResponseTime: time.Second,
			MaxCPU:          0.85,
			MaxMemory:       0.9,
			MaxErrorRate:    0.10,
			BudgetFactor:    0.5,
		}
	default:
		return Targets{
			MaxResponseTime: 250 * time.Millisecond,
			MaxCPU:          0.7,
			MaxMemory:       0.75,
			MaxErrorRate:    0.05,
			BudgetFactor:    1.0,
		}
	}
}

// AchievementSample records one metrics report evaluated against the
// targets that were current when it was taken. Rate is the fraction of
// the four targets met.
type AchievementSample struct {
	Level        Level
	ResponseTime time.Duration
	CPU          float64
	Memory       float64
	ErrorRate    float64
	Rate         float64
	At           time.Time
}
