package config

import "time"

// Default values for configuration fields.
const (
	// Runtime defaults
	DefaultRuntimeProfile = "development"

	// Storage defaults
	DefaultStorageBackend    = "sqlite"
	DefaultSQLitePath        = "data/ganymede.db"
	DefaultSQLiteWALMode     = true
	DefaultSQLiteBusyTimeout = 5 * time.Second

	// Idempotency defaults
	DefaultIdempotencyBackend  = "sqlite"
	DefaultIdempotencyPath     = "data/idempotency.db"
	DefaultIdempotencyTTL      = 24 * time.Hour
	DefaultIdempotencySchedule = "0 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true

	// Policy defaults
	DefaultPolicyFilePath = "./policy.yaml"
	DefaultPolicyWatch    = false
)

// ApplyDefaults fills in default values for any unset configuration fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Runtime.Profile == "" {
		cfg.Runtime.Profile = DefaultRuntimeProfile
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = DefaultIdempotencyBackend
	}
	if cfg.Idempotency.Path == "" {
		cfg.Idempotency.Path = DefaultIdempotencyPath
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = DefaultIdempotencyTTL
	}
	if cfg.Idempotency.SweepSchedule == "" {
		cfg.Idempotency.SweepSchedule = DefaultIdempotencySchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Policy.FilePath == "" {
		cfg.Policy.FilePath = DefaultPolicyFilePath
	}
}

// NewDefault returns a configuration populated entirely from defaults.
func NewDefault() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
