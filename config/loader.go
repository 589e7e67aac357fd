package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "ADAPTIVEGOV"

// Load reads configuration from the given file, applying environment
// variable overrides with the ADAPTIVEGOV_ prefix on top of the defaults.
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("governor.profile_interval", defaults.Governor.ProfileInterval)
	v.SetDefault("governor.error_backoff", defaults.Governor.ErrorBackoff)
	v.SetDefault("governor.history_size", defaults.Governor.HistorySize)

	v.SetDefault("sla.initial_level", defaults.SLA.InitialLevel)
	v.SetDefault("sla.history_size", defaults.SLA.HistorySize)
	v.SetDefault("sla.evaluation_window", defaults.SLA.EvaluationWindow)
	v.SetDefault("sla.min_samples", defaults.SLA.MinSamples)
	v.SetDefault("sla.downgrade_below", defaults.SLA.DowngradeBelow)
	v.SetDefault("sla.upgrade_above", defaults.SLA.UpgradeAbove)

	v.SetDefault("telemetry.metrics_enabled", defaults.Telemetry.MetricsEnabled)
	v.SetDefault("telemetry.webhook_url", defaults.Telemetry.WebhookURL)
	v.SetDefault("telemetry.webhook_timeout", defaults.Telemetry.WebhookTimeout)
}
