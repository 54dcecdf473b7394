package service

import (
	"fmt"
	"strings"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
)

// Tool names exposed to the model, one per action variant. The resource type
// is an argument rather than part of the tool name, so the tool surface stays
// fixed as resource handlers are added.
const (
	toolCreateResource = "create_resource"
	toolReadResource   = "read_resource"
	toolUpdateResource = "update_resource"
	toolDeleteResource = "delete_resource"
	toolListResources  = "list_resources"
)

// actionTypeForTool maps a tool name to its action variant.
func actionTypeForTool(name string) (action.Type, bool) {
	switch name {
	case toolCreateResource:
		return action.TypeCreate, true
	case toolReadResource:
		return action.TypeRead, true
	case toolUpdateResource:
		return action.TypeUpdate, true
	case toolDeleteResource:
		return action.TypeDelete, true
	case toolListResources:
		return action.TypeList, true
	default:
		return "", false
	}
}

// toolDefinitions builds the tool schemas advertised to the model, scoped to
// the resource types that actually have a registered handler.
func toolDefinitions(types []action.ResourceType) []outbound.ToolDefinition {
	names := make([]string, 0, len(types))
	for _, rt := range types {
		names = append(names, string(rt))
	}
	typeList := strings.Join(names, ", ")

	resourceType := map[string]interface{}{
		"type":        "string",
		"description": fmt.Sprintf("Resource type to operate on. One of: %s.", typeList),
	}
	resourcePath := map[string]interface{}{
		"type":        "string",
		"description": "Path of the target resource. Relative paths are resolved against the current project.",
	}
	dryRun := map[string]interface{}{
		"type":        "boolean",
		"description": "Validate only; make no changes.",
	}
	comment := map[string]interface{}{
		"type":        "string",
		"description": "Optional note recorded in the audit trail.",
	}

	return []outbound.ToolDefinition{
		{
			Name:        toolCreateResource,
			Description: "Create a new configuration resource at the given path.",
			Parameters: objectSchema(map[string]interface{}{
				"resourceType": resourceType,
				"resourcePath": resourcePath,
				"payload": map[string]interface{}{
					"type":        "object",
					"description": "Full definition of the resource to create.",
				},
				"dryRun":  dryRun,
				"comment": comment,
			}, "resourceType", "resourcePath", "payload"),
		},
		{
			Name:        toolReadResource,
			Description: "Read a configuration resource, optionally projecting specific fields.",
			Parameters: objectSchema(map[string]interface{}{
				"resourceType": resourceType,
				"resourcePath": resourcePath,
				"fields": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Field names to return. Omit for the full resource.",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "How deep to traverse nested structures. 0 means unlimited.",
				},
			}, "resourceType", "resourcePath"),
		},
		{
			Name:        toolUpdateResource,
			Description: "Update an existing resource. By default the payload is merged into the current definition; set merge to false to replace it wholesale (destructive, requires confirmation).",
			Parameters: objectSchema(map[string]interface{}{
				"resourceType": resourceType,
				"resourcePath": resourcePath,
				"payload": map[string]interface{}{
					"type":        "object",
					"description": "Fields to change (merge) or the full replacement definition.",
				},
				"merge": map[string]interface{}{
					"type":        "boolean",
					"description": "Merge into the existing definition (default true).",
				},
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Set true only after the user explicitly confirmed a destructive change.",
				},
				"dryRun":  dryRun,
				"comment": comment,
			}, "resourceType", "resourcePath", "payload"),
		},
		{
			Name:        toolDeleteResource,
			Description: "Delete a resource. Destructive; requires explicit user confirmation before setting confirm.",
			Parameters: objectSchema(map[string]interface{}{
				"resourceType": resourceType,
				"resourcePath": resourcePath,
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Also delete everything under the path.",
				},
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Set true only after the user explicitly confirmed the deletion.",
				},
				"dryRun":  dryRun,
				"comment": comment,
			}, "resourceType", "resourcePath"),
		},
		{
			Name:        toolListResources,
			Description: "List resources under a path. A trailing /* lists the subtree.",
			Parameters: objectSchema(map[string]interface{}{
				"resourceType": resourceType,
				"resourcePath": resourcePath,
			}, "resourceType", "resourcePath"),
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
