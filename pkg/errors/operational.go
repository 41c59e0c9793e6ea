package errors

import (
	"fmt"
	"time"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// OperationalError represents enhanced error information for debugging.
//
// It wraps errors with operational context including plan ID, operation ID,
// and timestamp. This enables better error tracking when reviewing apply
// runs after the fact.
type OperationalError struct {
	Operation string       // What step was being performed
	PlanID    types.PlanID // Which plan
	OpID      types.OpID   // Which operation (if applicable)
	Timestamp time.Time    // When error occurred
	Cause     error        // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err != nil {
//	    return NewOperationalError("dispatching mutation", planID, opID, err)
//	}
func NewOperationalError(operation string, planID types.PlanID, opID types.OpID, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation: operation,
		PlanID:    planID,
		OpID:      opID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: plan={id} op={id}: {cause}"
// If the operation ID is empty, it's omitted from the message.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	var msg string
	if e.OpID != "" {
		msg = fmt.Sprintf("[%s] %s: plan=%s op=%s: %v",
			timestamp,
			e.Operation,
			e.PlanID,
			e.OpID,
			e.Cause)
	} else {
		msg = fmt.Sprintf("[%s] %s: plan=%s: %v",
			timestamp,
			e.Operation,
			e.PlanID,
			e.Cause)
	}

	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
