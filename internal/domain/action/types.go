// Package action defines the Action type system: an immutable, protocol-agnostic
// representation of one requested operation against a host platform resource.
// Every inbound request — whether it arrives on the direct action endpoint or
// as a model-initiated tool call inside a conversation — is normalized into an
// Action before policy evaluation and execution.
package action

import "strings"

// Type categorizes the kind of operation being performed.
type Type string

const (
	// TypeCreate creates a new resource at a path.
	TypeCreate Type = "create"
	// TypeRead reads a single resource.
	TypeRead Type = "read"
	// TypeUpdate modifies an existing resource.
	TypeUpdate Type = "update"
	// TypeDelete removes a resource.
	TypeDelete Type = "delete"
	// TypeList enumerates resources under a path.
	TypeList Type = "list"
)

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the type is a known action type.
func (t Type) IsValid() bool {
	switch t {
	case TypeCreate, TypeRead, TypeUpdate, TypeDelete, TypeList:
		return true
	default:
		return false
	}
}

// Types lists all known action types in a stable order.
func Types() []Type {
	return []Type{TypeCreate, TypeRead, TypeUpdate, TypeDelete, TypeList}
}

// ResourceType identifies the kind of host platform resource an action targets.
type ResourceType string

const (
	// ResourceTag is a realtime tag in the tag provider.
	ResourceTag ResourceType = "tag"
	// ResourcePerspectiveView is a Perspective view definition.
	ResourcePerspectiveView ResourceType = "perspective-view"
	// ResourceScript is a project script module.
	ResourceScript ResourceType = "script"
	// ResourceNamedQuery is a named query definition.
	ResourceNamedQuery ResourceType = "named-query"
	// ResourceProject is a project-level resource.
	ResourceProject ResourceType = "project"
	// ResourceGatewayConfig is gateway-scoped configuration.
	ResourceGatewayConfig ResourceType = "gateway-config"
)

// resourceAliases maps accepted aliases to canonical resource types.
// Aliases must be normalized before any permission table lookup.
var resourceAliases = map[string]ResourceType{
	"view":  ResourcePerspectiveView,
	"query": ResourceNamedQuery,
}

// NormalizeResourceType resolves aliases and returns the canonical resource
// type. Returns ("", false) for unknown input.
func NormalizeResourceType(s string) (ResourceType, bool) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if rt.IsValid() {
		return rt, true
	}
	if canonical, ok := resourceAliases[string(rt)]; ok {
		return canonical, true
	}
	return "", false
}

// String returns the string representation of the ResourceType.
func (r ResourceType) String() string {
	return string(r)
}

// IsValid returns true if the resource type is canonical (aliases excluded).
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceTag, ResourcePerspectiveView, ResourceScript,
		ResourceNamedQuery, ResourceProject, ResourceGatewayConfig:
		return true
	default:
		return false
	}
}

// ResourceTypes lists all canonical resource types in a stable order.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceTag, ResourcePerspectiveView, ResourceScript,
		ResourceNamedQuery, ResourceProject, ResourceGatewayConfig,
	}
}

// MaxResourcePathLength is the maximum accepted resource path length.
const MaxResourcePathLength = 500

// MaxCommentLength is the maximum accepted option comment length.
const MaxCommentLength = 1000

// Options carries caller-supplied modifiers for an action. The zero value is
// the safe default: no dry run, no forced confirmation bypass, no comment.
type Options struct {
	// DryRun validates the action without side effects.
	DryRun bool
	// Force bypasses the destructive-confirmation gate. Callers must only set
	// this after explicit user confirmation.
	Force bool
	// Comment is free-form operator context carried into the audit trail.
	Comment string
}

// Action is one requested operation against a named resource. Actions are
// immutable once constructed: a rejected or retried action is represented by
// a new instance, never mutated in place.
type Action struct {
	// Type is the operation variant (create/read/update/delete/list).
	Type Type
	// CorrelationID is a caller-supplied opaque string used for tracing.
	CorrelationID string
	// ResourceType is the canonical resource type the action targets.
	ResourceType ResourceType
	// ResourcePath names the target; list paths may end in a wildcard segment.
	ResourcePath string
	// Options are the caller-supplied modifiers.
	Options Options

	// Payload is the resource content for create and update actions.
	Payload map[string]interface{}
	// Merge controls update semantics: true merges into the existing resource,
	// false replaces it wholesale. Defaults to true (non-destructive).
	Merge bool
	// Recursive controls whether delete removes an entire subtree.
	Recursive bool
	// Fields is an optional field projection for read actions.
	Fields []string
	// Depth bounds recursion for read actions (0 = unbounded).
	Depth int
}

// CreateSpec enumerates every field of a create action.
type CreateSpec struct {
	CorrelationID string
	ResourceType  ResourceType
	ResourcePath  string
	Payload       map[string]interface{}
	Options       Options
}

// NewCreate constructs a create action. The payload is copied so later caller
// mutation cannot reach the constructed action.
func NewCreate(spec CreateSpec) *Action {
	return &Action{
		Type:          TypeCreate,
		CorrelationID: spec.CorrelationID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		Options:       spec.Options,
		Payload:       copyPayload(spec.Payload),
	}
}

// ReadSpec enumerates every field of a read action.
type ReadSpec struct {
	CorrelationID string
	ResourceType  ResourceType
	ResourcePath  string
	Fields        []string
	Depth         int
	Options       Options
}

// NewRead constructs a read action.
func NewRead(spec ReadSpec) *Action {
	fields := make([]string, len(spec.Fields))
	copy(fields, spec.Fields)
	return &Action{
		Type:          TypeRead,
		CorrelationID: spec.CorrelationID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		Options:       spec.Options,
		Fields:        fields,
		Depth:         spec.Depth,
	}
}

// UpdateSpec enumerates every field of an update action. Merge is a pointer so
// the omitted case can default to true: a plain update merges rather than
// replacing, keeping the default non-destructive.
type UpdateSpec struct {
	CorrelationID string
	ResourceType  ResourceType
	ResourcePath  string
	Payload       map[string]interface{}
	Merge         *bool
	Options       Options
}

// NewUpdate constructs an update action. Omitted Merge defaults to true.
func NewUpdate(spec UpdateSpec) *Action {
	merge := true
	if spec.Merge != nil {
		merge = *spec.Merge
	}
	return &Action{
		Type:          TypeUpdate,
		CorrelationID: spec.CorrelationID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		Options:       spec.Options,
		Payload:       copyPayload(spec.Payload),
		Merge:         merge,
	}
}

// DeleteSpec enumerates every field of a delete action.
type DeleteSpec struct {
	CorrelationID string
	ResourceType  ResourceType
	ResourcePath  string
	Recursive     bool
	Options       Options
}

// NewDelete constructs a delete action. Omitted Recursive defaults to false.
func NewDelete(spec DeleteSpec) *Action {
	return &Action{
		Type:          TypeDelete,
		CorrelationID: spec.CorrelationID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		Options:       spec.Options,
		Recursive:     spec.Recursive,
	}
}

// ListSpec enumerates every field of a list action.
type ListSpec struct {
	CorrelationID string
	ResourceType  ResourceType
	ResourcePath  string
	Options       Options
}

// NewList constructs a list action.
func NewList(spec ListSpec) *Action {
	return &Action{
		Type:          TypeList,
		CorrelationID: spec.CorrelationID,
		ResourceType:  spec.ResourceType,
		ResourcePath:  spec.ResourcePath,
		Options:       spec.Options,
	}
}

// IsDestructive reports whether the action deletes or wholesale-replaces data.
// Delete is always destructive; update is destructive only when it replaces
// rather than merges. Read and list are never destructive.
func (a *Action) IsDestructive() bool {
	switch a.Type {
	case TypeDelete:
		return true
	case TypeUpdate:
		return !a.Merge
	default:
		return false
	}
}

// RequiresConfirmation reports whether the action demands explicit
// confirmation before execution: delete unless forced, and non-merge update.
func (a *Action) RequiresConfirmation() bool {
	switch a.Type {
	case TypeDelete:
		return !a.Options.Force
	case TypeUpdate:
		return !a.Merge
	default:
		return false
	}
}

// copyPayload returns a shallow copy of a payload map.
func copyPayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return cp
}
