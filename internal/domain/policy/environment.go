// Package policy contains the domain types for action authorization:
// environment modes, decisions, the engine contract, and the pluggable
// extension rule interface.
package policy

import (
	"fmt"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
)

// Mode is the deployment posture controlling default strictness. It is
// supplied once at startup and immutable for the process lifetime.
type Mode string

const (
	// ModeDevelopment relaxes confirmation and audit requirements.
	ModeDevelopment Mode = "development"
	// ModeTest enforces confirmation and audit like production.
	ModeTest Mode = "test"
	// ModeProduction enforces the strictest posture, including the
	// per-resource-type delete permission gate for destructive actions.
	ModeProduction Mode = "production"
)

// ParseMode returns the Mode for a configuration string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevelopment, ModeTest, ModeProduction:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown environment mode %q (want development, test, or production)", s)
	}
}

// String returns the string representation of the Mode.
func (m Mode) String() string {
	return string(m)
}

// RequiresAuditLog reports whether the mode mandates an audit sink.
func (m Mode) RequiresAuditLog() bool {
	return m != ModeDevelopment
}

// RequiresDestructiveConfirmation reports whether destructive actions must
// carry explicit confirmation (options.force) in this mode.
func (m Mode) RequiresDestructiveConfirmation() bool {
	return m != ModeDevelopment
}

// GloballyAllows reports whether the environment's coarse action/resource
// allow-sets include the pair. These sets are independent of per-key
// permissions and are consulted by the advisory evaluate path before any
// other check. Development and test allow every pair; production's set
// limits gateway-scoped configuration to read and list, keeping its
// mutation with the host platform's own tooling.
func (m Mode) GloballyAllows(t action.Type, rt action.ResourceType) bool {
	if m != ModeProduction {
		return true
	}
	if rt != action.ResourceGatewayConfig {
		return true
	}
	return t == action.TypeRead || t == action.TypeList
}

// RestrictsDestructiveToDeletePermission reports whether destructive actions
// additionally require the resource-type-specific delete permission, short of
// admin. Only production closes this privilege-escalation gap: a coarser
// grant like "project:update" must not imply irreversible deletes.
func (m Mode) RestrictsDestructiveToDeletePermission() bool {
	return m == ModeProduction
}
