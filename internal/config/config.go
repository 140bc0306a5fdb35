package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Remote   RemoteConfig   `mapstructure:"remote"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// RemoteConfig defines the connection to the timesheet service
type RemoteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TenantID   string `mapstructure:"tenant_id"`
	Timeout    string `mapstructure:"timeout"`
	TimeFormat string `mapstructure:"time_format"` // "clock" or "datetime"
	BreakUnit  string `mapstructure:"break_unit"`  // "minutes" or "hours"
}

// DefaultsConfig defines the workday defaults advertised to the assistant
type DefaultsConfig struct {
	StartTime    string `mapstructure:"start_time"`
	EndTime      string `mapstructure:"end_time"`
	BreakMinutes int    `mapstructure:"break_minutes"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load loads configuration from file and environment variables. An explicit
// path must exist; without one the default locations are searched and a
// missing file is fine — every setting can arrive via TIMESHEET_* variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("timesheet-mcp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "timesheet-mcp"))
		}
	}
	v.SetEnvPrefix("TIMESHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. The required remote
// settings default to empty strings so that viper learns the keys and picks
// their values up from the environment.
func setDefaults(v *viper.Viper) {
	// Remote service defaults
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.tenant_id", "")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.time_format", "clock")
	v.SetDefault("remote.break_unit", "minutes")

	// Workday defaults
	v.SetDefault("defaults.start_time", "08:30")
	v.SetDefault("defaults.end_time", "17:00")
	v.SetDefault("defaults.break_minutes", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")
}

// validate validates the configuration
func validate(cfg *Config) error {
	// The three settings the adapter cannot run without
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required (TIMESHEET_REMOTE_BASE_URL)")
	}
	if cfg.Remote.APIKey == "" {
		return fmt.Errorf("remote.api_key is required (TIMESHEET_REMOTE_API_KEY)")
	}
	if cfg.Remote.TenantID == "" {
		return fmt.Errorf("remote.tenant_id is required (TIMESHEET_REMOTE_TENANT_ID)")
	}

	if _, err := time.ParseDuration(cfg.Remote.Timeout); err != nil {
		return fmt.Errorf("invalid remote.timeout %q: %w", cfg.Remote.Timeout, err)
	}
	switch cfg.Remote.TimeFormat {
	case "clock", "datetime":
	default:
		return fmt.Errorf("invalid remote.time_format %q (must be clock or datetime)", cfg.Remote.TimeFormat)
	}
	switch cfg.Remote.BreakUnit {
	case "minutes", "hours":
	default:
		return fmt.Errorf("invalid remote.break_unit %q (must be minutes or hours)", cfg.Remote.BreakUnit)
	}

	if err := validClock(cfg.Defaults.StartTime); err != nil {
		return fmt.Errorf("invalid defaults.start_time: %w", err)
	}
	if err := validClock(cfg.Defaults.EndTime); err != nil {
		return fmt.Errorf("invalid defaults.end_time: %w", err)
	}
	if cfg.Defaults.BreakMinutes < 0 {
		return fmt.Errorf("defaults.break_minutes must not be negative: %d", cfg.Defaults.BreakMinutes)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}

	return nil
}

func validClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("%q is not a HH:MM time", s)
	}
	return nil
}
