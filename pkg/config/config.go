package config

import "time"

// Config is the root configuration for a ganymede deployment.
type Config struct {
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Storage     StorageConfig     `yaml:"storage"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Policy      PolicyConfig      `yaml:"policy"`
}

// RuntimeConfig selects the runtime profile. The profile gates storage
// fail-closed behavior: production refuses to run without a durable
// backing store.
type RuntimeConfig struct {
	// Profile is one of "production", "development", or "test".
	Profile string `yaml:"profile"`
}

// StorageConfig configures the run store backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig holds SQLite-specific storage settings.
type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// IdempotencyConfig configures the idempotency record store.
type IdempotencyConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`

	// TTL is how long completed requests stay replayable.
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is a cron expression for expiry sweeps. Empty disables
	// the sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PolicyConfig configures the review policy source.
type PolicyConfig struct {
	// FilePath is the policy document to load.
	FilePath string `yaml:"file_path"`

	// Watch enables live reload of the policy file.
	Watch bool `yaml:"watch"`
}
