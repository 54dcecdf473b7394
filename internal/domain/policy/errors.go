package policy

import (
	"fmt"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// AuthorizationError is returned when a caller lacks the permission an action
// requires, or when a mode-specific restriction applies. It is distinct from
// ConfirmationRequiredError: a denial cannot be resolved by retrying with
// force.
type AuthorizationError struct {
	// Reason is a human-readable explanation.
	Reason string
	// MissingPermission is the permission code whose absence caused the
	// denial, attached for diagnostics (empty when not permission-related).
	MissingPermission auth.Permission
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.MissingPermission != "" {
		return fmt.Sprintf("authorization denied: %s (missing permission %q)", e.Reason, e.MissingPermission)
	}
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// ConfirmationRequiredError is returned when a destructive action lacks
// explicit confirmation (options.force) in a mode that requires it. Callers
// should surface the reason and retry with force only after explicit user
// confirmation.
type ConfirmationRequiredError struct {
	// Reason explains what confirmation is needed for.
	Reason string
}

// Error implements the error interface.
func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("confirmation required: %s", e.Reason)
}
