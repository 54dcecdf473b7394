package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

// recordingRecorder captures audit entries for assertions.
type recordingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingRecorder) Record(entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingRecorder) all() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *recordingRecorder) byEventType(eventType string) []audit.Entry {
	var out []audit.Entry
	for _, e := range r.all() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ audit.Recorder = (*recordingRecorder)(nil)

// stubRule is a scripted policy.Rule.
type stubRule struct {
	name     string
	decision policy.Decision
	err      error
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(ctx context.Context, act *action.Action, userID string) (policy.Decision, error) {
	return r.decision, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func readerContext() *auth.Context {
	return &auth.Context{
		UserID:      "key-reader",
		Permissions: auth.NewPermissionSet("tag:read", "tag:update"),
	}
}

func deleteAction() *action.Action {
	return action.NewDelete(action.DeleteSpec{
		CorrelationID: "c-del",
		ResourceType:  action.ResourceTag,
		ResourcePath:  "plc1/motor",
	})
}

func readAction() *action.Action {
	return action.NewRead(action.ReadSpec{
		CorrelationID: "c-read",
		ResourceType:  action.ResourceTag,
		ResourcePath:  "plc1/motor",
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	noMerge := false

	tests := []struct {
		name        string
		mode        policy.Mode
		authCtx     *auth.Context
		act         *action.Action
		wantErr     string // "", "denied", "confirm"
		wantMissing auth.Permission
	}{
		{
			name:    "permitted read succeeds",
			mode:    policy.ModeTest,
			authCtx: readerContext(),
			act:     readAction(),
		},
		{
			name: "admin bypasses everything",
			mode: policy.ModeProduction,
			authCtx: &auth.Context{
				UserID:      "key-admin",
				Permissions: auth.NewPermissionSet(auth.PermissionAdmin),
			},
			act: deleteAction(),
		},
		{
			name:        "missing permission denied",
			mode:        policy.ModeTest,
			authCtx:     readerContext(),
			act:         deleteAction(),
			wantErr:     "denied",
			wantMissing: "tag:delete",
		},
		{
			name:    "unknown resource type denied",
			mode:    policy.ModeTest,
			authCtx: readerContext(),
			act: &action.Action{
				CorrelationID: "c-x",
				Type:          action.TypeRead,
				ResourceType:  action.ResourceType("turbine"),
				ResourcePath:  "a/b",
			},
			wantErr: "denied",
		},
		{
			name: "dry-run-only key cannot execute for real",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-sim",
				Permissions: auth.NewPermissionSet("tag:read"),
				DryRunOnly:  true,
			},
			act:     readAction(),
			wantErr: "denied",
		},
		{
			name: "dry-run-only key may dry-run",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-sim",
				Permissions: auth.NewPermissionSet("tag:read"),
				DryRunOnly:  true,
			},
			act: action.NewRead(action.ReadSpec{
				CorrelationID: "c-read",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Options:       action.Options{DryRun: true},
			}),
		},
		{
			name: "destructive requires confirmation in test mode",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-del",
				Permissions: auth.NewPermissionSet("tag:delete"),
			},
			act:     deleteAction(),
			wantErr: "confirm",
		},
		{
			name: "force skips confirmation",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-del",
				Permissions: auth.NewPermissionSet("tag:delete"),
			},
			act: action.NewDelete(action.DeleteSpec{
				CorrelationID: "c-del",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Options:       action.Options{Force: true},
			}),
		},
		{
			name: "development skips confirmation",
			mode: policy.ModeDevelopment,
			authCtx: &auth.Context{
				UserID:      "key-del",
				Permissions: auth.NewPermissionSet("tag:delete"),
			},
			act: action.NewDelete(action.DeleteSpec{
				CorrelationID: "c-del",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
			}),
		},
		{
			name: "production restricts non-merge update to delete holders",
			mode: policy.ModeProduction,
			authCtx: &auth.Context{
				UserID:      "key-writer",
				Permissions: auth.NewPermissionSet("tag:update"),
			},
			act: action.NewUpdate(action.UpdateSpec{
				CorrelationID: "c-up",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Payload:       map[string]interface{}{"v": 1},
				Merge:         &noMerge,
			}),
			wantErr:     "denied",
			wantMissing: "tag:delete",
		},
		{
			name: "production allows non-merge update with delete permission and force",
			mode: policy.ModeProduction,
			authCtx: &auth.Context{
				UserID:      "key-writer",
				Permissions: auth.NewPermissionSet("tag:update", "tag:delete"),
			},
			act: action.NewUpdate(action.UpdateSpec{
				CorrelationID: "c-up",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Payload:       map[string]interface{}{"v": 1},
				Merge:         &noMerge,
				Options:       action.Options{Force: true},
			}),
		},
		{
			name: "non-merge update without force requires confirmation",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-writer",
				Permissions: auth.NewPermissionSet("tag:update"),
			},
			act: action.NewUpdate(action.UpdateSpec{
				CorrelationID: "c-up",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Payload:       map[string]interface{}{"v": 1},
				Merge:         &noMerge,
			}),
			wantErr: "confirm",
		},
		{
			name: "dry run does not skip confirmation",
			mode: policy.ModeTest,
			authCtx: &auth.Context{
				UserID:      "key-del",
				Permissions: auth.NewPermissionSet("tag:delete"),
			},
			act: action.NewDelete(action.DeleteSpec{
				CorrelationID: "c-del",
				ResourceType:  action.ResourceTag,
				ResourcePath:  "plc1/motor",
				Options:       action.Options{DryRun: true},
			}),
			wantErr: "confirm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &recordingRecorder{}
			svc := NewPolicyService(tt.mode, recorder, testLogger())

			err := svc.Authorize(ctx, tt.authCtx, tt.act)

			switch tt.wantErr {
			case "":
				if err != nil {
					t.Fatalf("Authorize: %v, want nil", err)
				}
				if len(recorder.byEventType(audit.EventAuthorizationAllowed)) != 1 {
					t.Error("expected one allowed audit entry")
				}
			case "denied":
				var authzErr *policy.AuthorizationError
				if !errors.As(err, &authzErr) {
					t.Fatalf("Authorize: %v, want AuthorizationError", err)
				}
				if tt.wantMissing != "" && authzErr.MissingPermission != tt.wantMissing {
					t.Errorf("MissingPermission = %q, want %q", authzErr.MissingPermission, tt.wantMissing)
				}
				if len(recorder.byEventType(audit.EventAuthorizationDenied)) != 1 {
					t.Error("expected one denied audit entry")
				}
			case "confirm":
				var confirmErr *policy.ConfirmationRequiredError
				if !errors.As(err, &confirmErr) {
					t.Fatalf("Authorize: %v, want ConfirmationRequiredError", err)
				}
				if len(recorder.byEventType(audit.EventConfirmationRequired)) != 1 {
					t.Error("expected one confirmation-required audit entry")
				}
			}
		})
	}
}

func TestAuthorizeAuditsCorrelation(t *testing.T) {
	recorder := &recordingRecorder{}
	svc := NewPolicyService(policy.ModeTest, recorder, testLogger())

	_ = svc.Authorize(context.Background(), readerContext(), readAction())

	entries := recorder.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].CorrelationID != "c-read" {
		t.Errorf("CorrelationID = %q, want %q", entries[0].CorrelationID, "c-read")
	}
	if entries[0].Category != audit.CategoryPolicy {
		t.Errorf("Category = %q, want %q", entries[0].Category, audit.CategoryPolicy)
	}
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("no rules allows", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger())
		d := svc.Evaluate(ctx, readAction(), "u1")
		if d.Effect != policy.EffectAllow {
			t.Errorf("Effect = %q, want allow", d.Effect)
		}
	})

	t.Run("destructive advises confirmation", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger())
		d := svc.Evaluate(ctx, deleteAction(), "u1")
		if d.Effect != policy.EffectRequireConfirmation {
			t.Errorf("Effect = %q, want require_confirmation", d.Effect)
		}
	})

	t.Run("forced destructive is advised allowed", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger())
		d := svc.Evaluate(ctx, action.NewDelete(action.DeleteSpec{
			CorrelationID: "c-del",
			ResourceType:  action.ResourceTag,
			ResourcePath:  "plc1/motor",
			Options:       action.Options{Force: true},
		}), "u1")
		if d.Effect != policy.EffectAllow {
			t.Errorf("Effect = %q, want allow", d.Effect)
		}
	})

	t.Run("environment allow-set is checked first", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeProduction, &recordingRecorder{}, testLogger())

		d := svc.Evaluate(ctx, action.NewDelete(action.DeleteSpec{
			CorrelationID: "c-gw",
			ResourceType:  action.ResourceGatewayConfig,
			ResourcePath:  "network/settings",
			Options:       action.Options{Force: true},
		}), "u1")
		if d.Effect != policy.EffectDeny {
			t.Fatalf("Effect = %q, want deny", d.Effect)
		}
		if !strings.Contains(d.Reason, "allowed set") {
			t.Errorf("Reason = %q, want allow-set denial", d.Reason)
		}

		d = svc.Evaluate(ctx, action.NewRead(action.ReadSpec{
			CorrelationID: "c-gw-read",
			ResourceType:  action.ResourceGatewayConfig,
			ResourcePath:  "network/settings",
		}), "u1")
		if d.Effect != policy.EffectAllow {
			t.Errorf("Effect = %q, want allow for read", d.Effect)
		}
	})

	t.Run("deny rule outranks confirmation", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger(), WithRules([]policy.Rule{
			stubRule{name: "deny-all", decision: policy.Decision{Effect: policy.EffectDeny, Reason: "blocked", RuleName: "deny-all"}},
		}))
		d := svc.Evaluate(ctx, deleteAction(), "u1")
		if d.Effect != policy.EffectDeny || d.RuleName != "deny-all" {
			t.Errorf("decision = %+v, want deny from deny-all", d)
		}
	})

	t.Run("rule error fails closed", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger(), WithRules([]policy.Rule{
			stubRule{name: "broken", err: errors.New("boom")},
		}))
		d := svc.Evaluate(ctx, readAction(), "u1")
		if d.Effect != policy.EffectDeny {
			t.Errorf("Effect = %q, want deny on rule error", d.Effect)
		}
	})

	t.Run("decisions are cached per user and action shape", func(t *testing.T) {
		recorder := &recordingRecorder{}
		svc := NewPolicyService(policy.ModeTest, recorder, testLogger())

		_ = svc.Evaluate(ctx, readAction(), "u1")
		_ = svc.Evaluate(ctx, readAction(), "u1")
		if got := len(recorder.byEventType(audit.EventEvaluationPerformed)); got != 1 {
			t.Errorf("evaluated entries = %d, want 1 (second call cached)", got)
		}

		_ = svc.Evaluate(ctx, readAction(), "u2")
		if got := len(recorder.byEventType(audit.EventEvaluationPerformed)); got != 2 {
			t.Errorf("evaluated entries = %d, want 2 (different user misses)", got)
		}
	})

	t.Run("SetRules purges the cache", func(t *testing.T) {
		svc := NewPolicyService(policy.ModeTest, &recordingRecorder{}, testLogger())
		if d := svc.Evaluate(ctx, readAction(), "u1"); d.Effect != policy.EffectAllow {
			t.Fatalf("Effect = %q, want allow", d.Effect)
		}

		svc.SetRules([]policy.Rule{
			stubRule{name: "deny-all", decision: policy.Decision{Effect: policy.EffectDeny, RuleName: "deny-all"}},
		})
		if d := svc.Evaluate(ctx, readAction(), "u1"); d.Effect != policy.EffectDeny {
			t.Errorf("Effect = %q, want deny after rule change", d.Effect)
		}
	})
}
