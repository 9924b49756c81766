package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for validation run IDs.
	RunIDKey contextKey = "run_id"

	// TenantKey is the context key for tenant identifiers.
	TenantKey contextKey = "tenant_id"

	// UserKey is the context key for user identifiers.
	UserKey contextKey = "user_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithTenant adds a tenant identifier to the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantKey, tenantID)
}

// GetTenant retrieves the tenant identifier from the context.
func GetTenant(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantKey).(string); ok {
		return tenantID
	}
	return ""
}

// WithUser adds a user identifier to the context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

// GetUser retrieves the user identifier from the context.
func GetUser(ctx context.Context) string {
	if userID, ok := ctx.Value(UserKey).(string); ok {
		return userID
	}
	return ""
}

// FromContext returns logger enriched with every correlation field present
// in the context.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if tenantID := GetTenant(ctx); tenantID != "" {
		logger = logger.With("tenant_id", tenantID)
	}
	if userID := GetUser(ctx); userID != "" {
		logger = logger.With("user_id", userID)
	}
	return logger
}
