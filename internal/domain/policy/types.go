package policy

import (
	"context"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// Effect is the tri-state outcome of a coarse policy evaluation.
type Effect string

const (
	// EffectAllow permits the action.
	EffectAllow Effect = "allow"
	// EffectDeny blocks the action.
	EffectDeny Effect = "deny"
	// EffectRequireConfirmation blocks the action pending explicit user
	// confirmation; callers should retry with options.force after confirming,
	// not treat this as a hard no.
	EffectRequireConfirmation Effect = "require_confirmation"
)

// Decision is the explicit result of the advisory Evaluate path. Unlike
// Authorize it never throws: pre-flight UI filtering needs a value, not an
// exception.
type Decision struct {
	// Effect is the tri-state outcome.
	Effect Effect
	// Reason explains deny and require_confirmation outcomes.
	Reason string
	// RuleName names the extension rule that produced the decision, if any.
	RuleName string
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Rule is a pluggable extension rule consulted by the advisory Evaluate path
// after the built-in checks. Rules are evaluated in registration order; the
// first non-allow outcome wins.
type Rule interface {
	// Name identifies the rule in decisions and logs.
	Name() string
	// Evaluate returns the rule's effect for the action. An error counts as a
	// denial: extension rules fail closed.
	Evaluate(ctx context.Context, act *action.Action, userID string) (Decision, error)
}

// Engine authorizes actions. Two paths exist by design: Authorize is the
// fine-grained, per-key check that is authoritative at execution time and
// fails with a typed error on denial; Evaluate is the coarse advisory check
// against environment-wide allow-sets, for pre-flight filtering only. When
// both could apply, Authorize wins.
type Engine interface {
	// Authorize fails with *AuthorizationError or *ConfirmationRequiredError;
	// success is the absence of an error. Every outcome is audited before it
	// is surfaced.
	Authorize(ctx context.Context, authCtx *auth.Context, act *action.Action) error

	// Evaluate returns an advisory tri-state decision for the action.
	Evaluate(ctx context.Context, act *action.Action, userID string) Decision
}
