package httpapi

import (
	"errors"
	"net/http"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

// handleExecuteAction authorizes and executes one action.
// POST /v1/actions
//
// Status mapping: 400 for malformed or invalid requests, 403 for denied
// authorization, 409 when confirmation is required, 200 otherwise. Handler
// failures are 200 with a failure-status result body.
func (h *Handler) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	authCtx := h.authContext(r)

	var req action.Request
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	act, vr := req.ToAction()
	if act == nil {
		h.respondJSON(w, http.StatusBadRequest, action.Result{
			Status:        action.StatusValidationFailed,
			CorrelationID: req.CorrelationID,
			Message:       "action validation failed",
			Validation:    vr,
		})
		return
	}

	if err := h.policy.Authorize(r.Context(), authCtx, act); err != nil {
		var confirm *policy.ConfirmationRequiredError
		if errors.As(err, &confirm) {
			h.metrics.ObserveAction(string(act.ResourceType), string(act.Type), "confirmation-required")
			h.respondJSON(w, http.StatusConflict, action.FailureResult(act, confirm.Error()))
			return
		}
		h.metrics.ObserveAction(string(act.ResourceType), string(act.Type), "denied")
		h.respondJSON(w, http.StatusForbidden, action.FailureResult(act, err.Error()))
		return
	}

	result := h.executor.Execute(r.Context(), authCtx, act)
	h.metrics.ObserveAction(string(act.ResourceType), string(act.Type), string(result.Status))
	h.respondJSON(w, http.StatusOK, result)
}

// evaluateResponse is the JSON body for advisory evaluations.
type evaluateResponse struct {
	Effect   string `json:"effect"`
	Reason   string `json:"reason,omitempty"`
	RuleName string `json:"ruleName,omitempty"`
}

// handleEvaluateAction returns the advisory policy decision for an action
// without executing it.
// POST /v1/actions/evaluate
func (h *Handler) handleEvaluateAction(w http.ResponseWriter, r *http.Request) {
	authCtx := h.authContext(r)

	var req action.Request
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	act, vr := req.ToAction()
	if act == nil {
		h.respondJSON(w, http.StatusBadRequest, action.Result{
			Status:        action.StatusValidationFailed,
			CorrelationID: req.CorrelationID,
			Message:       "action validation failed",
			Validation:    vr,
		})
		return
	}

	decision := h.policy.Evaluate(r.Context(), act, authCtx.UserID)
	h.respondJSON(w, http.StatusOK, evaluateResponse{
		Effect:   string(decision.Effect),
		Reason:   decision.Reason,
		RuleName: decision.RuleName,
	})
}
