// Package conversation manages multi-turn agent conversations: the
// append-only message history, the streaming callback contract, and
// conversation lifecycle.
package conversation

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is the gateway-supplied system prompt.
	RoleSystem Role = "system"
	// RoleUser is the human caller.
	RoleUser Role = "user"
	// RoleAssistant is the model.
	RoleAssistant Role = "assistant"
	// RoleTool is a tool result fed back to the model.
	RoleTool Role = "tool"
)

// ToolCall is a model-initiated request to invoke an action during a turn.
type ToolCall struct {
	// ID is the model-assigned identifier for this call.
	ID string `json:"id"`
	// Name is the tool name (create_resource, read_resource, ...).
	Name string `json:"name"`
	// Arguments are the tool arguments as decoded JSON.
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Message is one entry in a conversation's history.
type Message struct {
	// Role identifies the author.
	Role Role `json:"role"`
	// Content is the message text (tool-result JSON for RoleTool).
	Content string `json:"content,omitempty"`
	// ToolCalls are the calls an assistant message requested, if any.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string `json:"toolCallId,omitempty"`
	// CreatedAt is when the message was appended (UTC).
	CreatedAt time.Time `json:"createdAt"`
}

// TokenUsage reports provider token consumption for a completed turn.
type TokenUsage struct {
	// PromptTokens is the input token count.
	PromptTokens int `json:"promptTokens"`
	// CompletionTokens is the output token count.
	CompletionTokens int `json:"completionTokens"`
	// TotalTokens is the sum.
	TotalTokens int `json:"totalTokens"`
}
