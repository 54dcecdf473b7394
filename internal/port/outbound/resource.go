package outbound

import (
	"context"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
)

// ResourceHandler is the seam to the out-of-scope resource CRUD
// implementations (tag store, view/script/named-query filesystem handlers).
// The executor's only obligations toward this port: never hand it an action
// that was not separately authorized, and honor dry-run by calling Validate
// instead of Execute.
type ResourceHandler interface {
	// ResourceType identifies the resource type this handler serves.
	ResourceType() action.ResourceType

	// Validate checks the action without side effects. Handlers that cannot
	// validate ahead of execution may return an empty (valid) result.
	Validate(ctx context.Context, act *action.Action) *action.ValidationResult

	// Execute performs the CRUD operation matching the action's type and
	// returns handler output for the result's data field. Errors are
	// normalized by the executor; they never propagate past it.
	Execute(ctx context.Context, act *action.Action) (map[string]interface{}, error)
}
