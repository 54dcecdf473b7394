// Package cel provides a CEL-based extension rule evaluator for the policy
// engine's advisory evaluation path.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
)

// maxExpressionLength is the maximum allowed length for rule expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, preventing cost-exhaustion
// through adversarial expressions.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single rule evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL expressions over action attributes.
type Evaluator struct {
	env *cel.Env
}

// NewRuleEnvironment creates a CEL environment exposing the action
// attributes extension rules may condition on.
func NewRuleEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("resource_type", cel.StringType),
		cel.Variable("action_type", cel.StringType),
		cel.Variable("resource_path", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("dry_run", cel.BoolType),
		cel.Variable("force", cel.BoolType),
		cel.Variable("destructive", cel.BoolType),
		cel.Variable("recursive", cel.BoolType),
	)
}

// NewEvaluator creates an Evaluator with the rule environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewRuleEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks an expression, returning a compiled program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that an expression is syntactically valid and
// within the safety limits before it is accepted into configuration.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// Evaluate runs a compiled program against the given action. Returns true if
// the expression evaluates to true. Evaluation is bounded by evalTimeout.
func (e *Evaluator) Evaluate(ctx context.Context, prg cel.Program, act *action.Action, userID string) (bool, error) {
	activation := map[string]interface{}{
		"resource_type": string(act.ResourceType),
		"action_type":   string(act.Type),
		"resource_path": act.ResourcePath,
		"user_id":       userID,
		"dry_run":       act.Options.DryRun,
		"force":         act.Options.Force,
		"destructive":   act.IsDestructive(),
		"recursive":     act.Recursive,
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", result.Value())
	}
	return matched, nil
}
