package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
)

// sseStream adapts a turn's stream callbacks onto a server-sent event
// response. Event names: token, tool_call_start, tool_call_complete,
// complete, error. Each event's data line is a JSON object.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEStream prepares the response for event streaming. Fails when the
// underlying writer cannot flush.
func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher}, nil
}

type sseTokenEvent struct {
	Token string `json:"token"`
}

type sseToolCallEvent struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    *action.Result         `json:"result,omitempty"`
}

type sseCompleteEvent struct {
	Text  string                  `json:"text"`
	Usage conversation.TokenUsage `json:"usage"`
}

type sseErrorEvent struct {
	Error string `json:"error"`
}

// OnToken implements conversation.StreamHandler.
func (s *sseStream) OnToken(token string) {
	s.emit("token", sseTokenEvent{Token: token})
}

// OnToolCallStart implements conversation.StreamHandler.
func (s *sseStream) OnToolCallStart(call conversation.ToolCall) {
	s.emit("tool_call_start", sseToolCallEvent{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
	})
}

// OnToolCallComplete implements conversation.StreamHandler.
func (s *sseStream) OnToolCallComplete(call conversation.ToolCall, result action.Result) {
	s.emit("tool_call_complete", sseToolCallEvent{
		ID:     call.ID,
		Name:   call.Name,
		Result: &result,
	})
}

// OnComplete implements conversation.StreamHandler.
func (s *sseStream) OnComplete(final string, usage conversation.TokenUsage) {
	s.emit("complete", sseCompleteEvent{Text: final, Usage: usage})
}

// OnError implements conversation.StreamHandler.
func (s *sseStream) OnError(err error) {
	s.emit("error", sseErrorEvent{Error: err.Error()})
}

func (s *sseStream) emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

// Compile-time interface verification.
var _ conversation.StreamHandler = (*sseStream)(nil)
