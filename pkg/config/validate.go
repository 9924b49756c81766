package config

import "fmt"

// Known runtime profiles.
const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
	ProfileTest        = "test"
)

// Validate checks the configuration for consistency. It returns the first
// problem found; configuration errors are construction-time failures, never
// silently coerced.
func Validate(cfg *Config) error {
	switch cfg.Runtime.Profile {
	case ProfileProduction, ProfileDevelopment, ProfileTest:
	default:
		return fmt.Errorf("runtime.profile: unknown profile %q", cfg.Runtime.Profile)
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path: required for sqlite backend")
		}
	case "memory":
		if cfg.Runtime.Profile == ProfileProduction {
			return fmt.Errorf("storage.backend: memory backend is not allowed in production")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.SQLite.BusyTimeout < 0 {
		return fmt.Errorf("storage.sqlite.busy_timeout: must not be negative")
	}

	switch cfg.Idempotency.Backend {
	case "sqlite":
		if cfg.Idempotency.Path == "" {
			return fmt.Errorf("idempotency.path: required for sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("idempotency.backend: unknown backend %q", cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.TTL < 0 {
		return fmt.Errorf("idempotency.ttl: must not be negative")
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level: unknown level %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format: unknown format %q", cfg.Telemetry.Logging.Format)
	}

	if cfg.Policy.FilePath == "" {
		return fmt.Errorf("policy.file_path: required")
	}
	return nil
}
