// Package policy parses and validates review policies for validation runs.
//
// A ReviewPolicy arrives as an external contract payload and is parsed into a
// closed, exhaustively-enumerated type before it reaches the engine. Unknown
// fields are rejected, not coerced. Two invariants are non-negotiable:
// hardFailOnMissingIndicators and failClosedOnEvidenceUnavailable must both
// be true; a payload setting either to false is an InvalidError, never a
// silent coercion.
//
// The package also provides a file watcher (fsnotify) so embedding hosts can
// live-reload a policy document from disk; reload failures keep the last
// good policy.
package policy
