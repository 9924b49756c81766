// Package logging configures the structured logger for the validation
// runtime.
//
// It is a thin layer over log/slog: New builds a *slog.Logger from a
// level/format configuration, and the context helpers carry run and tenant
// identifiers through call chains so every component logs the same
// correlation fields.
package logging
