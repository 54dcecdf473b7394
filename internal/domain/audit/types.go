// Package audit contains domain types for the append-only audit trail.
// Every authorization outcome, every executed action, and every
// authentication failure produces exactly one Entry.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies the subsystem that emitted an entry.
type Category string

const (
	// CategoryAction covers action execution (success or failure).
	CategoryAction Category = "action"
	// CategoryAuth covers authentication events.
	CategoryAuth Category = "auth"
	// CategoryPolicy covers authorization decisions.
	CategoryPolicy Category = "policy"
	// CategorySystem covers gateway lifecycle events.
	CategorySystem Category = "system"
)

// EventType constants for the events this subsystem emits.
const (
	// Policy decisions.
	EventAuthorizationAllowed = "policy.allowed"
	EventAuthorizationDenied  = "policy.denied"
	EventConfirmationRequired = "policy.confirmation_required"
	EventEvaluationPerformed  = "policy.evaluated"

	// Action execution.
	EventActionExecuted = "action.executed"
	EventActionFailed   = "action.failed"
	EventActionRejected = "action.rejected"

	// Authentication and key lifecycle.
	EventAuthFailed     = "auth.failed"
	EventAuthSucceeded  = "auth.succeeded"
	EventAPIKeyCreated  = "auth.api_key_created"
	EventAPIKeyRevoked  = "auth.api_key_revoked"
	EventAPIKeyEnabled  = "auth.api_key_enabled"
	EventAPIKeyDeleted  = "auth.api_key_deleted"
	EventAPIKeyModified = "auth.api_key_modified"

	// Gateway lifecycle.
	EventGatewayStarted = "system.started"
	EventGatewayStopped = "system.stopped"
)

// Entry is an immutable record of one security-relevant event. Created
// exactly once; never mutated or deleted by this subsystem. Retention and
// durable storage are an external concern behind the Sink contract.
type Entry struct {
	// ID is a generated unique identifier.
	ID string `json:"id"`
	// CorrelationID links the entry to the originating request.
	CorrelationID string `json:"correlationId,omitempty"`
	// Timestamp is assigned at construction (UTC).
	Timestamp time.Time `json:"timestamp"`
	// Category classifies the emitting subsystem.
	Category Category `json:"category"`
	// EventType names the specific event.
	EventType string `json:"eventType"`
	// UserID identifies the caller, when known.
	UserID string `json:"userId,omitempty"`
	// ResourceType is the targeted resource type, when applicable.
	ResourceType string `json:"resourceType,omitempty"`
	// ResourcePath is the targeted resource path, when applicable.
	ResourcePath string `json:"resourcePath,omitempty"`
	// ActionType is the action variant, when applicable.
	ActionType string `json:"actionType,omitempty"`
	// Details carries event-specific context; insertion order is irrelevant.
	Details map[string]interface{} `json:"details,omitempty"`
}

// EntrySpec enumerates every caller-settable field of an Entry.
type EntrySpec struct {
	CorrelationID string
	Category      Category
	EventType     string
	UserID        string
	ResourceType  string
	ResourcePath  string
	ActionType    string
	Details       map[string]interface{}
}

// NewEntry constructs an Entry, assigning its ID and timestamp.
func NewEntry(spec EntrySpec) Entry {
	return Entry{
		ID:            uuid.NewString(),
		CorrelationID: spec.CorrelationID,
		Timestamp:     time.Now().UTC(),
		Category:      spec.Category,
		EventType:     spec.EventType,
		UserID:        spec.UserID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		ActionType:    spec.ActionType,
		Details:       spec.Details,
	}
}
