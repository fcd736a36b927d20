// Package config loads opflow settings from an optional YAML file and
// OPFLOW_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/telemetry"
)

// EnvPrefix prefixes environment overrides: OPFLOW_LOG_LEVEL, OPFLOW_JOURNAL_PATH, ...
const EnvPrefix = "OPFLOW"

// Config holds application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Invocation InvocationConfig `mapstructure:"invocation"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// JournalConfig holds the SQLite journal location. Empty disables the journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// InvocationConfig holds engine defaults.
type InvocationConfig struct {
	Grouping string `mapstructure:"grouping" validate:"oneof=isolated changeset"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
}

// Load reads configuration. path names an explicit config file; when empty,
// opflow.yaml is looked up in the working directory and a missing file is
// not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("journal.path", "")
	v.SetDefault("invocation.grouping", string(ir.GroupingIsolated))
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", telemetry.DefaultNamespace)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("opflow")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GroupingMode returns the configured default grouping mode.
func (c Config) GroupingMode() ir.GroupingMode {
	return ir.GroupingMode(c.Invocation.Grouping)
}

// Logging returns the logger settings for telemetry.NewLogger.
func (c Config) Logging() telemetry.LoggingConfig {
	return telemetry.LoggingConfig{Level: c.Log.Level, Format: c.Log.Format}
}

// MetricsSettings returns the settings for telemetry.NewMetrics.
func (c Config) MetricsSettings() telemetry.MetricsConfig {
	return telemetry.MetricsConfig{Enabled: c.Metrics.Enabled, Namespace: c.Metrics.Namespace}
}
