package service

import (
	"strings"
	"testing"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
)

func TestActionTypeForTool(t *testing.T) {
	tests := []struct {
		tool string
		want action.Type
		ok   bool
	}{
		{tool: "create_resource", want: action.TypeCreate, ok: true},
		{tool: "read_resource", want: action.TypeRead, ok: true},
		{tool: "update_resource", want: action.TypeUpdate, ok: true},
		{tool: "delete_resource", want: action.TypeDelete, ok: true},
		{tool: "list_resources", want: action.TypeList, ok: true},
		{tool: "drop_table", ok: false},
		{tool: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, ok := actionTypeForTool(tt.tool)
			if ok != tt.ok || got != tt.want {
				t.Errorf("actionTypeForTool(%q) = %q, %v, want %q, %v", tt.tool, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestToolDefinitions(t *testing.T) {
	defs := toolDefinitions([]action.ResourceType{action.ResourceTag, action.ResourceScript})

	if len(defs) != 5 {
		t.Fatalf("defined %d tools, want 5", len(defs))
	}

	byName := make(map[string]int, len(defs))
	for i, d := range defs {
		byName[d.Name] = i
		if _, ok := actionTypeForTool(d.Name); !ok {
			t.Errorf("tool %q has no action mapping", d.Name)
		}

		props, ok := d.Parameters["properties"].(map[string]interface{})
		if !ok {
			t.Fatalf("tool %q parameters missing properties", d.Name)
		}
		rt, ok := props["resourceType"].(map[string]interface{})
		if !ok {
			t.Fatalf("tool %q missing resourceType property", d.Name)
		}
		desc, _ := rt["description"].(string)
		if !strings.Contains(desc, "tag") || !strings.Contains(desc, "script") {
			t.Errorf("tool %q resourceType description %q does not list registered types", d.Name, desc)
		}
	}

	create := defs[byName["create_resource"]]
	required, ok := create.Parameters["required"].([]string)
	if !ok {
		t.Fatal("create_resource required is not a string slice")
	}
	wantRequired := map[string]bool{"resourceType": true, "resourcePath": true, "payload": true}
	for _, r := range required {
		delete(wantRequired, r)
	}
	if len(wantRequired) != 0 {
		t.Errorf("create_resource missing required fields: %v", wantRequired)
	}

	del := defs[byName["delete_resource"]]
	delProps := del.Parameters["properties"].(map[string]interface{})
	if _, ok := delProps["confirm"]; !ok {
		t.Error("delete_resource has no confirm parameter")
	}
	if _, ok := delProps["recursive"]; !ok {
		t.Error("delete_resource has no recursive parameter")
	}
}
