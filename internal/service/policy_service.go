package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

// PolicyService implements policy.Engine. Authorize is the authoritative
// gate on the execution path; Evaluate is the advisory path used to preview
// what Authorize would decide, backed by a short-lived decision cache.
//
// Every Authorize outcome is audited under the policy category before the
// result is returned to the caller.
type PolicyService struct {
	mode     policy.Mode
	recorder audit.Recorder
	logger   *slog.Logger
	cache    *decisionCache

	// rules holds a []policy.Rule snapshot. Replaced wholesale on update
	// so evaluations never observe a partially modified rule set.
	rules atomic.Value
}

// PolicyOption configures a PolicyService.
type PolicyOption func(*PolicyService)

// WithRules sets the initial extension rule set, evaluated in order.
func WithRules(rules []policy.Rule) PolicyOption {
	return func(s *PolicyService) {
		s.rules.Store(append([]policy.Rule(nil), rules...))
	}
}

// WithDecisionCache overrides the advisory decision cache bounds.
func WithDecisionCache(maxSize int, ttl time.Duration) PolicyOption {
	return func(s *PolicyService) {
		s.cache = newDecisionCache(maxSize, ttl)
	}
}

// NewPolicyService creates a PolicyService for the given environment mode.
func NewPolicyService(mode policy.Mode, recorder audit.Recorder, logger *slog.Logger, opts ...PolicyOption) *PolicyService {
	s := &PolicyService{
		mode:     mode,
		recorder: recorder,
		logger:   logger,
		cache:    newDecisionCache(defaultDecisionCacheSize, defaultDecisionCacheTTL),
	}
	s.rules.Store([]policy.Rule(nil))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the environment mode the service enforces.
func (s *PolicyService) Mode() policy.Mode {
	return s.mode
}

// SetRules replaces the extension rule set and invalidates cached decisions.
func (s *PolicyService) SetRules(rules []policy.Rule) {
	s.rules.Store(append([]policy.Rule(nil), rules...))
	s.cache.purge()
}

// Authorize decides whether authCtx may execute act. It returns nil on
// success, *policy.AuthorizationError on denial and
// *policy.ConfirmationRequiredError when the action needs explicit
// confirmation. Unknown resource/action combinations are denied.
func (s *PolicyService) Authorize(ctx context.Context, authCtx *auth.Context, act *action.Action) error {
	// Admin bypasses permission checks entirely.
	if authCtx.IsAdmin() {
		s.audit(act, authCtx.UserID, audit.EventAuthorizationAllowed, "admin")
		return nil
	}

	// Production restricts destructive actions to holders of the explicit
	// delete permission for the resource type, regardless of other grants.
	if s.mode.RestrictsDestructiveToDeletePermission() && act.IsDestructive() {
		deletePerm := auth.DeletePermissionFor(act.ResourceType)
		if !authCtx.Has(deletePerm) {
			return s.deny(act, authCtx.UserID, &policy.AuthorizationError{
				Reason:            fmt.Sprintf("destructive %s on %s requires %s in production", act.Type, act.ResourceType, deletePerm),
				MissingPermission: deletePerm,
			})
		}
	}

	// Keys scoped to dry runs can never execute for real.
	if authCtx.DryRunOnly && !act.Options.DryRun {
		return s.deny(act, authCtx.UserID, &policy.AuthorizationError{
			Reason: "key is restricted to dry-run actions",
		})
	}

	// Resource/action pairs outside the permission table are denied, so a
	// new resource type is inert until a permission is defined for it.
	perm, ok := auth.PermissionFor(act.ResourceType, act.Type)
	if !ok {
		return s.deny(act, authCtx.UserID, &policy.AuthorizationError{
			Reason: fmt.Sprintf("no permission defined for %s on %s", act.Type, act.ResourceType),
		})
	}

	if !authCtx.Has(perm) {
		return s.deny(act, authCtx.UserID, &policy.AuthorizationError{
			Reason:            fmt.Sprintf("missing permission %s", perm),
			MissingPermission: perm,
		})
	}

	// Destructive actions need explicit confirmation unless the caller set
	// force after confirming with the user.
	if s.mode.RequiresDestructiveConfirmation() && act.IsDestructive() && !act.Options.Force {
		confirmErr := &policy.ConfirmationRequiredError{
			Reason: fmt.Sprintf("%s on %s %s requires confirmation", act.Type, act.ResourceType, act.ResourcePath),
		}
		s.audit(act, authCtx.UserID, audit.EventConfirmationRequired, confirmErr.Reason)
		return confirmErr
	}

	s.audit(act, authCtx.UserID, audit.EventAuthorizationAllowed, string(perm))
	return nil
}

// Evaluate returns an advisory decision for act without an auth context. It
// checks the environment's global allow-sets, then the destructive
// confirmation gate, then the extension rules in order; deny outranks
// require_confirmation, which outranks allow. Rule evaluation errors fail
// closed to deny.
func (s *PolicyService) Evaluate(ctx context.Context, act *action.Action, userID string) policy.Decision {
	key := s.cache.key(act, userID)
	if cached, ok := s.cache.get(key); ok {
		return cached
	}

	decision := s.evaluate(ctx, act, userID)
	s.cache.put(key, decision)
	s.audit(act, userID, audit.EventEvaluationPerformed, decision.Reason)
	return decision
}

func (s *PolicyService) evaluate(ctx context.Context, act *action.Action, userID string) policy.Decision {
	// The environment's coarse allow-sets come first, independent of any
	// per-key permission the caller may hold.
	if !s.mode.GloballyAllows(act.Type, act.ResourceType) {
		return policy.Decision{
			Effect: policy.EffectDeny,
			Reason: fmt.Sprintf("%s on %s is outside the %s environment's allowed set", act.Type, act.ResourceType, s.mode),
		}
	}

	decision := policy.Decision{Effect: policy.EffectAllow, Reason: "no rule matched"}

	if s.mode.RequiresDestructiveConfirmation() && act.IsDestructive() && !act.Options.Force {
		decision = policy.Decision{
			Effect: policy.EffectRequireConfirmation,
			Reason: fmt.Sprintf("%s on %s requires confirmation", act.Type, act.ResourceType),
		}
	}

	rules, _ := s.rules.Load().([]policy.Rule)
	for _, rule := range rules {
		d, err := rule.Evaluate(ctx, act, userID)
		if err != nil {
			s.logger.Error("rule evaluation failed", "rule", rule.Name(), "error", err)
			return policy.Decision{
				Effect:   policy.EffectDeny,
				Reason:   "rule evaluation failed",
				RuleName: rule.Name(),
			}
		}
		switch d.Effect {
		case policy.EffectDeny:
			return d
		case policy.EffectRequireConfirmation:
			if decision.Effect == policy.EffectAllow {
				decision = d
			}
		}
	}
	return decision
}

func (s *PolicyService) deny(act *action.Action, userID string, err *policy.AuthorizationError) error {
	s.audit(act, userID, audit.EventAuthorizationDenied, err.Reason)
	return err
}

func (s *PolicyService) audit(act *action.Action, userID string, eventType string, reason string) {
	s.recorder.Record(audit.NewEntry(audit.EntrySpec{
		CorrelationID: act.CorrelationID,
		Category:      audit.CategoryPolicy,
		EventType:     eventType,
		UserID:        userID,
		ResourceType:  string(act.ResourceType),
		ResourcePath:  act.ResourcePath,
		ActionType:    string(act.Type),
		Details:       map[string]interface{}{"reason": reason, "dry_run": act.Options.DryRun},
	}))
}

// Compile-time interface verification.
var _ policy.Engine = (*PolicyService)(nil)
