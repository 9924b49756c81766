package storage

import (
	"log/slog"
	"time"
)

// Runtime profiles recognized by the factory.
const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
	ProfileTest        = "test"
)

// Options selects and configures a storage backend.
type Options struct {
	// Backend is "sqlite" or "memory". Empty selects memory for
	// non-production profiles and nothing for production.
	Backend string

	// SQLitePath is the database file path when Backend is "sqlite".
	SQLitePath string

	// WALMode enables WAL journaling for the sqlite backend.
	WALMode bool

	// BusyTimeout is the sqlite lock wait duration.
	BusyTimeout time.Duration
}

// New resolves a Store for the given runtime profile.
//
// Selection is fail-closed: a production profile without a durable backend
// configured returns FailClosedError at construction time instead of
// silently degrading to the in-memory store. Non-production profiles fall
// back to memory.
func New(profile string, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "sqlite":
		if opts.SQLitePath == "" {
			if profile == ProfileProduction {
				return nil, &FailClosedError{Reason: "sqlite backend selected but no database path configured"}
			}
			logger.Warn("sqlite backend without path, falling back to memory store", "profile", profile)
			return NewMemoryStore(), nil
		}
		cfg := &SQLiteConfig{Path: opts.SQLitePath, WALMode: opts.WALMode, BusyTimeout: opts.BusyTimeout}
		if cfg.BusyTimeout == 0 {
			cfg.BusyTimeout = 5 * time.Second
		}
		return NewSQLiteStore(cfg, logger)

	case "memory", "":
		if profile == ProfileProduction {
			return nil, &FailClosedError{Reason: "production profile requires a durable backing store, not memory"}
		}
		return NewMemoryStore(), nil

	default:
		return nil, &FailClosedError{Reason: "unknown storage backend " + opts.Backend}
	}
}
