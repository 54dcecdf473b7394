package action

import "strings"

// OptionsRequest is the wire form of Options. All fields are optional; the
// omitted defaults are the safe ones (no dry run, no force).
type OptionsRequest struct {
	DryRun  bool   `json:"dryRun"`
	Force   bool   `json:"force"`
	Comment string `json:"comment"`
}

// Request is the wire form of an action, as received on the action endpoint
// or parsed from a model tool call. Variant-specific fields are ignored for
// variants that do not use them.
type Request struct {
	CorrelationID string                 `json:"correlationId"`
	Action        string                 `json:"action"`
	ResourceType  string                 `json:"resourceType"`
	ResourcePath  string                 `json:"resourcePath"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Fields        []string               `json:"fields,omitempty"`
	Depth         int                    `json:"depth,omitempty"`
	Recursive     bool                   `json:"recursive,omitempty"`
	Merge         *bool                  `json:"merge,omitempty"`
	Options       OptionsRequest         `json:"options"`
}

// Validate checks the request without constructing an Action. Field errors
// are collected rather than thrown so callers can surface all problems at
// once.
func (r *Request) Validate() *ValidationResult {
	vr := &ValidationResult{}

	if strings.TrimSpace(r.CorrelationID) == "" {
		vr.AddError("correlationId", "correlation ID is required", "required")
	}

	typ := Type(strings.ToLower(strings.TrimSpace(r.Action)))
	if !typ.IsValid() {
		vr.AddError("action", "must be one of create, read, update, delete, list", "invalid_action")
	}

	if _, ok := NormalizeResourceType(r.ResourceType); !ok {
		vr.AddError("resourceType", "unknown resource type", "invalid_resource_type")
	}

	path := r.ResourcePath
	switch {
	case strings.TrimSpace(path) == "":
		vr.AddError("resourcePath", "resource path is required", "required")
	case len(path) > MaxResourcePathLength:
		vr.AddError("resourcePath", "resource path exceeds maximum length", "too_long")
	case strings.Contains(path, "*") && (typ != TypeList || !isTrailingWildcard(path)):
		vr.AddError("resourcePath", "wildcard is only valid as the trailing segment of a list path", "invalid_wildcard")
	}

	if len(r.Options.Comment) > MaxCommentLength {
		vr.AddError("options.comment", "comment exceeds maximum length", "too_long")
	}

	switch typ {
	case TypeCreate:
		if len(r.Payload) == 0 {
			vr.AddError("payload", "create requires a payload", "required")
		}
	case TypeUpdate:
		if len(r.Payload) == 0 {
			vr.AddError("payload", "update requires a payload", "required")
		}
		if r.Merge != nil && !*r.Merge {
			vr.AddWarning("non-merge update replaces the resource wholesale and is treated as destructive")
		}
	case TypeRead:
		if r.Depth < 0 {
			vr.AddError("depth", "depth must not be negative", "invalid")
		}
	case TypeDelete:
		if r.Recursive {
			vr.AddWarning("recursive delete removes the entire subtree")
		}
	}

	if r.Options.DryRun {
		vr.AddInfo("dry run: the action will be validated without side effects")
	}

	return vr
}

// ToAction validates the request and constructs the matching Action variant.
// Returns a nil Action when validation fails.
func (r *Request) ToAction() (*Action, *ValidationResult) {
	vr := r.Validate()
	if !vr.Valid() {
		return nil, vr
	}

	rt, _ := NormalizeResourceType(r.ResourceType)
	opts := Options{
		DryRun:  r.Options.DryRun,
		Force:   r.Options.Force,
		Comment: r.Options.Comment,
	}

	var act *Action
	switch Type(strings.ToLower(strings.TrimSpace(r.Action))) {
	case TypeCreate:
		act = NewCreate(CreateSpec{
			CorrelationID: r.CorrelationID,
			ResourceType:  rt,
			ResourcePath:  r.ResourcePath,
			Payload:       r.Payload,
			Options:       opts,
		})
	case TypeRead:
		act = NewRead(ReadSpec{
			CorrelationID: r.CorrelationID,
			ResourceType:  rt,
			ResourcePath:  r.ResourcePath,
			Fields:        r.Fields,
			Depth:         r.Depth,
			Options:       opts,
		})
	case TypeUpdate:
		act = NewUpdate(UpdateSpec{
			CorrelationID: r.CorrelationID,
			ResourceType:  rt,
			ResourcePath:  r.ResourcePath,
			Payload:       r.Payload,
			Merge:         r.Merge,
			Options:       opts,
		})
	case TypeDelete:
		act = NewDelete(DeleteSpec{
			CorrelationID: r.CorrelationID,
			ResourceType:  rt,
			ResourcePath:  r.ResourcePath,
			Recursive:     r.Recursive,
			Options:       opts,
		})
	case TypeList:
		act = NewList(ListSpec{
			CorrelationID: r.CorrelationID,
			ResourceType:  rt,
			ResourcePath:  r.ResourcePath,
			Options:       opts,
		})
	}

	return act, vr
}

// isTrailingWildcard reports whether the only wildcard in the path is a lone
// trailing "*" segment (e.g. "folder/sub/*").
func isTrailingWildcard(path string) bool {
	if strings.Count(path, "*") != 1 {
		return false
	}
	return strings.HasSuffix(path, "/*") || path == "*"
}
