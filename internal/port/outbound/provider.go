// Package outbound defines the ports toward external collaborators: the
// model provider backends and the platform resource handlers.
package outbound

import (
	"context"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
)

// ToolDefinition describes one tool exposed to the model, in a
// provider-agnostic form. Adapters translate it to their backend's schema.
type ToolDefinition struct {
	// Name is the tool name the model will call.
	Name string
	// Description tells the model what the tool does.
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]interface{}
}

// ChatRequest is one streaming completion request.
type ChatRequest struct {
	// Messages is the conversation history to send.
	Messages []conversation.Message
	// Tools are the tool schemas the model may call.
	Tools []ToolDefinition
	// MaxTokens caps the completion length (0 = provider default).
	MaxTokens int
}

// ChatEvent is a union of the things a provider stream can yield. Exactly
// one of the groups is meaningful per event: a text token, assembled tool
// calls, the Done marker with usage, or a terminal error.
type ChatEvent struct {
	// Token is a streamed text fragment.
	Token string
	// ToolCalls are fully-assembled tool calls, delivered once the provider
	// finished streaming their fragments.
	ToolCalls []conversation.ToolCall
	// Done signals the end of the stream for this request.
	Done bool
	// Usage reports token consumption; set on the Done event when the
	// backend provides it.
	Usage *conversation.TokenUsage
	// Err is a terminal provider failure. No further events follow it.
	Err error
}

// ModelProvider streams chat completions from a language-model backend.
// Concrete wire formats are out of scope here; adapters own them.
type ModelProvider interface {
	// Name identifies the backend for logs and metrics.
	Name() string

	// StreamChat starts one completion and returns its event channel. The
	// channel is closed after the Done or Err event. Cancelling the context
	// terminates the stream.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}
