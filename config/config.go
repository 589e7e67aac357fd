// Package config holds the configuration for the adaptive performance
// governance subsystem: control-loop cadence, SLA evaluation parameters
// and telemetry settings, with validation and file/environment loading.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the governance subsystem.
type Config struct {
	Governor  GovernorConfig  `mapstructure:"governor" json:"governor"`
	SLA       SLAConfig       `mapstructure:"sla" json:"sla"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
}

// GovernorConfig controls the performance governor's control loop.
type GovernorConfig struct {
	// ProfileInterval is the cadence of the periodic re-profiling loop.
	ProfileInterval time.Duration `mapstructure:"profile_interval" json:"profile_interval"`

	// ErrorBackoff is the longer retry delay used after a degraded
	// telemetry read.
	ErrorBackoff time.Duration `mapstructure:"error_backoff" json:"error_backoff"`

	// HistorySize bounds the retained tier-transition history.
	HistorySize int `mapstructure:"history_size" json:"history_size"`
}

// SLAConfig controls SLA achievement tracking and auto-adjustment.
type SLAConfig struct {
	// InitialLevel names the starting service level: "aggressive",
	// "balanced" or "conservative".
	InitialLevel string `mapstructure:"initial_level" json:"initial_level"`

	// HistorySize bounds the retained achievement-sample history.
	HistorySize int `mapstructure:"history_size" json:"history_size"`

	// EvaluationWindow is how many of the most recent samples the
	// auto-adjustment considers.
	EvaluationWindow int `mapstructure:"evaluation_window" json:"evaluation_window"`

	// MinSamples is the minimum number of samples inside the window
	// before auto-adjustment may act.
	MinSamples int `mapstructure:"min_samples" json:"min_samples"`

	// DowngradeBelow and UpgradeAbove bound the hysteresis band. A rolling
	// achievement below DowngradeBelow steps the level toward conservative,
	// above UpgradeAbove toward aggressive. The band is intentionally wide
	// to prevent oscillation.
	DowngradeBelow float64 `mapstructure:"downgrade_below" json:"downgrade_below"`
	UpgradeAbove   float64 `mapstructure:"upgrade_above" json:"upgrade_above"`
}

// TelemetryConfig controls event delivery and metrics exposure.
type TelemetryConfig struct {
	// MetricsEnabled toggles Prometheus metric registration.
	MetricsEnabled bool `mapstructure:"metrics_enabled" json:"metrics_enabled"`

	// WebhookURL, when set, enables the webhook event sink.
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`

	// WebhookTimeout bounds a single webhook delivery attempt.
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout" json:"webhook_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Governor: GovernorConfig{
			ProfileInterval: 30 * time.Second,
			ErrorBackoff:    60 * time.Second,
			HistorySize:     64,
		},
		SLA: SLAConfig{
			InitialLevel:     "balanced",
			HistorySize:      100,
			EvaluationWindow: 5,
			MinSamples:       3,
			DowngradeBelow:   0.8,
			UpgradeAbove:     0.98,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
			WebhookTimeout: 30 * time.Second,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Governor.validate(); err != nil {
		errs = append(errs, fmt.Errorf("governor config: %w", err))
	}
	if err := c.SLA.validate(); err != nil {
		errs = append(errs, fmt.Errorf("sla config: %w", err))
	}
	if err := c.Telemetry.validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry config: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func (gc *GovernorConfig) validate() error {
	if gc.ProfileInterval < time.Second {
		return errors.New("profile interval must be at least 1 second")
	}
	if gc.ErrorBackoff < gc.ProfileInterval {
		return errors.New("error backoff must not be shorter than the profile interval")
	}
	if gc.HistorySize < 1 {
		return errors.New("history size must be at least 1")
	}
	return nil
}

func (sc *SLAConfig) validate() error {
	switch sc.InitialLevel {
	case "aggressive", "balanced", "conservative":
	default:
		return fmt.Errorf("unknown initial level %q", sc.InitialLevel)
	}
	if sc.HistorySize < 1 {
		return errors.New("history size must be at least 1")
	}
	if sc.EvaluationWindow < 1 || sc.EvaluationWindow > sc.HistorySize {
		return errors.New("evaluation window must be between 1 and the history size")
	}
	if sc.MinSamples < 1 || sc.MinSamples > sc.EvaluationWindow {
		return errors.New("min samples must be between 1 and the evaluation window")
	}
	if sc.DowngradeBelow < 0 || sc.DowngradeBelow > 1 {
		return errors.New("downgrade threshold must be between 0 and 1")
	}
	if sc.UpgradeAbove < 0 || sc.UpgradeAbove > 1 {
		return errors.New("upgrade threshold must be between 0 and 1")
	}
	if sc.DowngradeBelow >= sc.UpgradeAbove {
		return errors.New("downgrade threshold must be below the upgrade threshold")
	}
	return nil
}

func (tc *TelemetryConfig) validate() error {
	if tc.WebhookTimeout < 0 {
		return errors.New("webhook timeout cannot be negative")
	}
	return nil
}

// Clone returns an independent copy of the configuration. Every field is
// a value type, so a struct copy suffices.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
