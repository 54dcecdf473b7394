// Package ignitiongateway provides a Go SDK for the Ignition LLM Gateway
// action API.
//
// The gateway sits between conversational agents and Ignition configuration
// resources, enforcing per-key permissions and environment policy before any
// change is applied. This SDK lets Go programs submit actions and advisory
// policy evaluations over the gateway's HTTP API. It uses only the Go
// standard library with zero external dependencies.
//
// Quick start:
//
//	// Set IGNGW_SERVER_ADDR and IGNGW_API_KEY env vars, then:
//	client := ignitiongateway.NewClient()
//
//	result, err := client.Execute(ctx, ignitiongateway.ActionRequest{
//	    CorrelationID: "req-1",
//	    Action:        "read",
//	    ResourceType:  "tag",
//	    ResourcePath:  "plc1/motor",
//	})
//	if err != nil {
//	    var denied *ignitiongateway.DeniedError
//	    if errors.As(err, &denied) {
//	        fmt.Printf("denied: %s\n", denied.Message)
//	    }
//	}
package ignitiongateway

// Effect is the outcome of an advisory policy evaluation.
type Effect string

const (
	// EffectAllow indicates the action would be permitted.
	EffectAllow Effect = "allow"

	// EffectDeny indicates the action would be denied by policy.
	EffectDeny Effect = "deny"

	// EffectRequireConfirmation indicates the action needs explicit user
	// confirmation before it can execute.
	EffectRequireConfirmation Effect = "require_confirmation"
)

// Action result statuses, mirroring the gateway's classification.
const (
	StatusSuccess          = "success"
	StatusFailure          = "failure"
	StatusValidationFailed = "validation-failed"
)

// ActionOptions are the cross-variant execution options.
type ActionOptions struct {
	// DryRun validates the action without applying changes.
	DryRun bool `json:"dryRun,omitempty"`

	// Force acknowledges a destructive delete, bypassing the confirmation
	// gate where the environment permits it.
	Force bool `json:"force,omitempty"`

	// Comment is an optional note recorded in the gateway audit trail.
	Comment string `json:"comment,omitempty"`
}

// ActionRequest describes one action to execute or evaluate. Variant-specific
// fields are ignored for action types that do not use them.
type ActionRequest struct {
	// CorrelationID ties the request to its audit entries. Required.
	CorrelationID string `json:"correlationId"`

	// Action is the verb: "create", "read", "update", "delete", or "list".
	Action string `json:"action"`

	// ResourceType names the target resource kind (e.g. "tag", "script").
	ResourceType string `json:"resourceType"`

	// ResourcePath is the target path. List paths may end in "/*".
	ResourcePath string `json:"resourcePath"`

	// Payload is the resource definition for create and update.
	Payload map[string]any `json:"payload,omitempty"`

	// Fields selects specific fields on read.
	Fields []string `json:"fields,omitempty"`

	// Depth bounds nested traversal on read. 0 means unlimited.
	Depth int `json:"depth,omitempty"`

	// Recursive deletes the entire subtree on delete.
	Recursive bool `json:"recursive,omitempty"`

	// Merge controls update semantics. Nil or true merges into the current
	// definition; false replaces it wholesale and is treated as destructive.
	Merge *bool `json:"merge,omitempty"`

	// Options carries the cross-variant execution options.
	Options ActionOptions `json:"options"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	// Field names the offending request field.
	Field string `json:"field"`

	// Message explains the failure.
	Message string `json:"message"`

	// Code is an optional machine-readable error code.
	Code string `json:"code,omitempty"`
}

// ValidationResult collects errors, warnings, and informational notes from
// validating an action on the server.
type ValidationResult struct {
	// Errors are field-level failures.
	Errors []FieldError `json:"errors,omitempty"`

	// Warnings are advisory notes that did not block the action.
	Warnings []string `json:"warnings,omitempty"`

	// Infos are informational notes.
	Infos []string `json:"infos,omitempty"`
}

// ActionResult is the normalized outcome of one executed action.
type ActionResult struct {
	// Status is "success", "failure", or "validation-failed".
	Status string `json:"status"`

	// CorrelationID echoes the originating request's correlation ID.
	CorrelationID string `json:"correlationId"`

	// Message is a human-readable summary of the outcome.
	Message string `json:"message,omitempty"`

	// Data carries handler output (read results, created resource, listing).
	Data map[string]any `json:"data,omitempty"`

	// Validation carries field-level errors when Status is validation-failed.
	Validation *ValidationResult `json:"validation,omitempty"`
}

// OK reports whether the result is a success.
func (r *ActionResult) OK() bool {
	return r.Status == StatusSuccess
}

// EvaluateResponse is the advisory policy decision for an action, returned
// without executing it.
type EvaluateResponse struct {
	// Effect is "allow", "deny", or "require_confirmation".
	Effect Effect `json:"effect"`

	// Reason explains the decision.
	Reason string `json:"reason,omitempty"`

	// RuleName names the policy rule that produced the decision, if any.
	RuleName string `json:"ruleName,omitempty"`
}
