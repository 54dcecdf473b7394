package ignitiongateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrActionDenied is returned when the gateway refuses an action on
	// authorization grounds.
	ErrActionDenied = errors.New("action denied")

	// ErrConfirmationRequired is returned when a destructive action needs
	// explicit confirmation before it can execute.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrServerUnreachable is returned when the gateway cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// GatewayError is the base error type for unexpected HTTP failures.
type GatewayError struct {
	// Code is a machine-readable error code.
	Code string
	// Err is the underlying error.
	Err error
}

// Error returns the error message.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ignitiongateway [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("ignitiongateway [%s]", e.Code)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// DeniedError is returned when the gateway denies an action. It carries the
// gateway's failure result.
type DeniedError struct {
	// CorrelationID identifies the denied action in the audit trail.
	CorrelationID string
	// Message is the gateway's explanation of the denial.
	Message string
}

// Error returns a human-readable description of the denial.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("action denied: %s", e.Message)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrActionDenied).
func (e *DeniedError) Is(target error) bool {
	return target == ErrActionDenied
}

// ConfirmationRequiredError is returned when a destructive action was not
// confirmed. Resubmit with Options.Force set after the user confirms.
type ConfirmationRequiredError struct {
	// CorrelationID identifies the held action in the audit trail.
	CorrelationID string
	// Message is the gateway's explanation of what needs confirming.
	Message string
}

// Error returns a human-readable description of the confirmation hold.
func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("confirmation required: %s", e.Message)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrConfirmationRequired).
func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// ServerUnreachableError is returned when the gateway cannot be contacted.
type ServerUnreachableError struct {
	// Cause is the underlying connection error.
	Cause error
}

// Error returns a human-readable description of the connection failure.
func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
