package policy

import "fmt"

// InvalidError reports a malformed or non-compliant policy payload. Policies
// always fail closed: an invalid payload is rejected, never coerced into a
// usable policy.
type InvalidError struct {
	Field  string // Offending field, if attributable
	Reason string // Why the payload was rejected
	Cause  error  // Underlying parse error, if any
}

// Error implements the error interface.
func (e *InvalidError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid policy [field=%s]: %s", e.Field, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("invalid policy: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid policy: %s", e.Reason)
}

// Unwrap returns the underlying cause error.
func (e *InvalidError) Unwrap() error {
	return e.Cause
}
