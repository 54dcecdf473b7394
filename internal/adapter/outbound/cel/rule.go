package cel

import (
	"context"
	"fmt"

	celgo "github.com/google/cel-go/cel"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

// Rule adapts a compiled CEL expression into a policy extension rule. When
// the expression matches, the configured effect applies; otherwise the rule
// allows (defers to later rules).
type Rule struct {
	name      string
	program   celgo.Program
	effect    policy.Effect
	reason    string
	evaluator *Evaluator
}

// RuleSpec enumerates every field of a CEL extension rule.
type RuleSpec struct {
	// Name identifies the rule in decisions and logs.
	Name string
	// Expression is the CEL condition; when it evaluates true, Effect applies.
	Expression string
	// Effect is the outcome for matching actions (deny or require_confirmation;
	// allow-effect rules are legal but pointless since non-match already allows).
	Effect policy.Effect
	// Reason is attached to matching decisions.
	Reason string
}

// NewRule validates and compiles the expression and returns the rule.
func NewRule(evaluator *Evaluator, spec RuleSpec) (*Rule, error) {
	if err := evaluator.ValidateExpression(spec.Expression); err != nil {
		return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
	}
	prg, err := evaluator.Compile(spec.Expression)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
	}
	reason := spec.Reason
	if reason == "" {
		reason = fmt.Sprintf("matched rule %s", spec.Name)
	}
	return &Rule{
		name:      spec.Name,
		program:   prg,
		effect:    spec.Effect,
		reason:    reason,
		evaluator: evaluator,
	}, nil
}

// Name implements policy.Rule.
func (r *Rule) Name() string {
	return r.name
}

// Evaluate implements policy.Rule. A non-matching expression allows; errors
// propagate so the engine can fail closed.
func (r *Rule) Evaluate(ctx context.Context, act *action.Action, userID string) (policy.Decision, error) {
	matched, err := r.evaluator.Evaluate(ctx, r.program, act, userID)
	if err != nil {
		return policy.Decision{}, err
	}
	if !matched {
		return policy.Decision{Effect: policy.EffectAllow}, nil
	}
	return policy.Decision{
		Effect:   r.effect,
		Reason:   r.reason,
		RuleName: r.name,
	}, nil
}

// Compile-time interface verification.
var _ policy.Rule = (*Rule)(nil)
