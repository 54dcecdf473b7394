package conversation

import "github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"

// StreamHandler receives stream events for one conversation turn. Callbacks
// are invoked synchronously, in strict arrival order, on the goroutine
// driving the provider stream; implementations must not block indefinitely
// since that stalls the whole turn.
type StreamHandler interface {
	// OnToken is called for each streamed text token.
	OnToken(token string)

	// OnToolCallStart fires when a tool call has been parsed and is about to
	// be authorized and executed.
	OnToolCallStart(call ToolCall)

	// OnToolCallComplete fires after the tool call finished, with the
	// normalized result. Denied calls arrive here as failure results, not via
	// OnError.
	OnToolCallComplete(call ToolCall, result action.Result)

	// OnComplete fires exactly once when the turn finishes, with the final
	// assembled response and token usage.
	OnComplete(final string, usage TokenUsage)

	// OnError fires exactly once when the turn fails unrecoverably (provider
	// fault, cancellation). Already-appended history is preserved for retry.
	OnError(err error)
}

// NopStreamHandler is the null-object StreamHandler for callers that don't
// need streaming.
type NopStreamHandler struct{}

// OnToken implements StreamHandler.
func (NopStreamHandler) OnToken(string) {}

// OnToolCallStart implements StreamHandler.
func (NopStreamHandler) OnToolCallStart(ToolCall) {}

// OnToolCallComplete implements StreamHandler.
func (NopStreamHandler) OnToolCallComplete(ToolCall, action.Result) {}

// OnComplete implements StreamHandler.
func (NopStreamHandler) OnComplete(string, TokenUsage) {}

// OnError implements StreamHandler.
func (NopStreamHandler) OnError(error) {}

// Compile-time interface verification.
var _ StreamHandler = NopStreamHandler{}
