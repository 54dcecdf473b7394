package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
)

// ExecutorService routes authorized actions to the resource handler
// registered for their resource type and normalizes every outcome into an
// action.Result. It does not authorize; callers must run the action through
// the policy engine first. Each Execute call emits exactly one audit entry
// in the action category.
type ExecutorService struct {
	handlers map[action.ResourceType]outbound.ResourceHandler
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewExecutorService creates an ExecutorService with no registered handlers.
func NewExecutorService(recorder audit.Recorder, logger *slog.Logger) *ExecutorService {
	return &ExecutorService{
		handlers: make(map[action.ResourceType]outbound.ResourceHandler),
		recorder: recorder,
		logger:   logger,
	}
}

// Register installs a handler for its resource type, replacing any previous
// handler. Registration happens at composition time, before serving starts.
func (s *ExecutorService) Register(h outbound.ResourceHandler) {
	s.handlers[h.ResourceType()] = h
}

// RegisteredTypes returns the resource types with a handler, sorted.
func (s *ExecutorService) RegisteredTypes() []action.ResourceType {
	types := make([]action.ResourceType, 0, len(s.handlers))
	for rt := range s.handlers {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Execute runs act against its resource handler. Dry-run actions are
// validated only; nothing is modified. Handler errors are folded into a
// failure Result rather than returned, so the error return covers only
// infrastructure faults (currently none).
func (s *ExecutorService) Execute(ctx context.Context, authCtx *auth.Context, act *action.Action) action.Result {
	start := time.Now()

	handler, ok := s.handlers[act.ResourceType]
	if !ok {
		result := action.FailureResult(act, fmt.Sprintf("no handler registered for resource type %s", act.ResourceType))
		s.audit(authCtx, act, audit.EventActionRejected, result, start)
		return result
	}

	if vr := handler.Validate(ctx, act); vr != nil && !vr.Valid() {
		result := action.ValidationFailedResult(act, vr)
		s.audit(authCtx, act, audit.EventActionRejected, result, start)
		return result
	}

	if act.Options.DryRun {
		result := action.SuccessResult(act, "dry run: validation passed, no changes applied", nil)
		s.audit(authCtx, act, audit.EventActionExecuted, result, start)
		return result
	}

	data, err := handler.Execute(ctx, act)
	if err != nil {
		s.logger.Error("action execution failed",
			"correlation_id", act.CorrelationID,
			"resource_type", act.ResourceType,
			"action_type", act.Type,
			"error", err)
		result := action.FailureResult(act, err.Error())
		s.audit(authCtx, act, audit.EventActionFailed, result, start)
		return result
	}

	result := action.SuccessResult(act, fmt.Sprintf("%s %s completed", act.Type, act.ResourceType), data)
	s.audit(authCtx, act, audit.EventActionExecuted, result, start)
	return result
}

func (s *ExecutorService) audit(authCtx *auth.Context, act *action.Action, eventType string, result action.Result, start time.Time) {
	details := map[string]interface{}{
		"status":      string(result.Status),
		"dry_run":     act.Options.DryRun,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if result.Message != "" {
		details["message"] = result.Message
	}
	if act.Options.Comment != "" {
		details["comment"] = act.Options.Comment
	}
	s.recorder.Record(audit.NewEntry(audit.EntrySpec{
		CorrelationID: act.CorrelationID,
		Category:      audit.CategoryAction,
		EventType:     eventType,
		UserID:        authCtx.UserID,
		ResourceType:  string(act.ResourceType),
		ResourcePath:  act.ResourcePath,
		ActionType:    string(act.Type),
		Details:       details,
	}))
}
