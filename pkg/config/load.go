package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, and
// validates it. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// GANYMEDE_* environment variable overrides on top, re-validating the
// result.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format GANYMEDE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("GANYMEDE_RUNTIME_PROFILE"); val != "" {
		cfg.Runtime.Profile = val
	}

	if val := os.Getenv("GANYMEDE_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("GANYMEDE_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("GANYMEDE_STORAGE_SQLITE_WAL_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Storage.SQLite.WALMode = b
		}
	}
	if val := os.Getenv("GANYMEDE_STORAGE_SQLITE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Storage.SQLite.BusyTimeout = d
		}
	}

	if val := os.Getenv("GANYMEDE_IDEMPOTENCY_BACKEND"); val != "" {
		cfg.Idempotency.Backend = val
	}
	if val := os.Getenv("GANYMEDE_IDEMPOTENCY_PATH"); val != "" {
		cfg.Idempotency.Path = val
	}
	if val := os.Getenv("GANYMEDE_IDEMPOTENCY_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Idempotency.TTL = d
		}
	}
	if val := os.Getenv("GANYMEDE_IDEMPOTENCY_SWEEP_SCHEDULE"); val != "" {
		cfg.Idempotency.SweepSchedule = val
	}

	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}

	if val := os.Getenv("GANYMEDE_POLICY_FILE_PATH"); val != "" {
		cfg.Policy.FilePath = val
	}
	if val := os.Getenv("GANYMEDE_POLICY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.Watch = b
		}
	}
}
