package errors

import "fmt"

// ConfigError reports a missing or invalid required input to plan generation.
// Configuration errors are fatal: generation aborts entirely rather than
// degrading to an unsafe default.
type ConfigError struct {
	Input  string // Which input was missing or invalid
	Reason string // Why it was rejected
}

// NewConfigError creates a ConfigError for the named input.
func NewConfigError(input, reason string) *ConfigError {
	return &ConfigError{Input: input, Reason: reason}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Input, e.Reason)
}

// StructuralError reports a malformed reference or unresolvable path inside a
// single operation being evaluated. Structural errors are fatal to that
// operation and are surfaced, never silently skipped.
type StructuralError struct {
	Subject string // What was being evaluated (entity ref, precondition path)
	Cause   error  // Underlying error
}

// NewStructuralError creates a StructuralError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
func NewStructuralError(subject string, cause error) *StructuralError {
	if cause == nil {
		return nil
	}
	return &StructuralError{Subject: subject, Cause: cause}
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error: %s: %v", e.Subject, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StructuralError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
