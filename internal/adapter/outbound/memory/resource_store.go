package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
)

// ResourceStore is a path-keyed in-memory resource handler for development
// and testing. Production deployments register real platform handlers on the
// executor instead; this adapter exists so the gateway is exercisable
// end-to-end without the host platform.
type ResourceStore struct {
	resourceType action.ResourceType
	mu           sync.RWMutex
	items        map[string]map[string]interface{}
}

// NewResourceStore creates an empty handler for one resource type.
func NewResourceStore(rt action.ResourceType) *ResourceStore {
	return &ResourceStore{
		resourceType: rt,
		items:        make(map[string]map[string]interface{}),
	}
}

// ResourceType implements outbound.ResourceHandler.
func (s *ResourceStore) ResourceType() action.ResourceType {
	return s.resourceType
}

// Validate checks the action against current store state without mutating it.
func (s *ResourceStore) Validate(ctx context.Context, act *action.Action) *action.ValidationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vr := &action.ValidationResult{}
	_, exists := s.items[act.ResourcePath]
	switch act.Type {
	case action.TypeCreate:
		if exists {
			vr.AddError("resourcePath", "resource already exists", "already_exists")
		}
	case action.TypeRead, action.TypeDelete:
		if !exists {
			vr.AddError("resourcePath", "resource not found", "not_found")
		}
	case action.TypeUpdate:
		if !exists && act.Merge {
			vr.AddError("resourcePath", "resource not found", "not_found")
		}
	}
	return vr
}

// Execute performs the CRUD operation matching the action type.
func (s *ResourceStore) Execute(ctx context.Context, act *action.Action) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := act.ResourcePath
	switch act.Type {
	case action.TypeCreate:
		if _, exists := s.items[path]; exists {
			return nil, fmt.Errorf("resource %q already exists", path)
		}
		s.items[path] = copyItem(act.Payload)
		return map[string]interface{}{"path": path}, nil

	case action.TypeRead:
		item, exists := s.items[path]
		if !exists {
			return nil, fmt.Errorf("resource %q not found", path)
		}
		return map[string]interface{}{"path": path, "resource": projectFields(item, act.Fields)}, nil

	case action.TypeUpdate:
		item, exists := s.items[path]
		if act.Merge {
			if !exists {
				return nil, fmt.Errorf("resource %q not found", path)
			}
			merged := copyItem(item)
			for k, v := range act.Payload {
				merged[k] = v
			}
			s.items[path] = merged
		} else {
			// Wholesale replacement.
			s.items[path] = copyItem(act.Payload)
		}
		return map[string]interface{}{"path": path, "merged": act.Merge}, nil

	case action.TypeDelete:
		if _, exists := s.items[path]; !exists {
			return nil, fmt.Errorf("resource %q not found", path)
		}
		removed := 1
		delete(s.items, path)
		if act.Recursive {
			prefix := strings.TrimSuffix(path, "/") + "/"
			for p := range s.items {
				if strings.HasPrefix(p, prefix) {
					delete(s.items, p)
					removed++
				}
			}
		}
		return map[string]interface{}{"path": path, "removed": removed}, nil

	case action.TypeList:
		prefix := strings.TrimSuffix(strings.TrimSuffix(path, "*"), "/")
		var paths []string
		for p := range s.items {
			if prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/") {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
		return map[string]interface{}{"paths": paths, "count": len(paths)}, nil

	default:
		return nil, fmt.Errorf("unsupported action type %q", act.Type)
	}
}

// Seed inserts a resource directly (for tests and dev seeding).
func (s *ResourceStore) Seed(path string, item map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[path] = copyItem(item)
}

// Len returns the number of stored resources.
func (s *ResourceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// projectFields applies a read field projection; an empty projection returns
// the whole item.
func projectFields(item map[string]interface{}, fields []string) map[string]interface{} {
	if len(fields) == 0 {
		return copyItem(item)
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := item[f]; ok {
			out[f] = v
		}
	}
	return out
}

func copyItem(item map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(item))
	for k, v := range item {
		cp[k] = v
	}
	return cp
}

// Compile-time interface verification.
var _ outbound.ResourceHandler = (*ResourceStore)(nil)
