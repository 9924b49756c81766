package idemstore

import (
	"context"
	"time"
)

// Record is one stored idempotency entry.
type Record struct {
	// Scope is the serialized (tenant, user) pair the key lives under.
	Scope string

	// Key is the caller-supplied (or request-derived) idempotency key.
	Key string

	// Fingerprint is the stable-JSON SHA-256 of the request payload.
	Fingerprint string

	// Response is the serialized response produced by the first
	// execution.
	Response []byte

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Backend stores idempotency records. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Put stores or replaces a record.
	Put(ctx context.Context, record *Record) error

	// Get returns the record for (scope, key), or nil when absent or
	// expired.
	Get(ctx context.Context, scope, key string) (*Record, error)

	// DeleteExpired removes records whose expiry is at or before now,
	// returning the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}
