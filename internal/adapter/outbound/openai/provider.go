// Package openai adapts OpenAI-compatible chat completion backends to the
// ModelProvider port, including any server exposing the same wire format
// (local Ollama, vLLM, proxy gateways).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
)

// defaultMaxTokens caps completions when the request doesn't specify one.
const defaultMaxTokens = 4096

// eventBuffer sizes the event channel; tokens are small and handlers are
// synchronous, so a modest buffer smooths bursts without hiding stalls.
const eventBuffer = 64

// Provider implements outbound.ModelProvider using the Chat Completions API.
type Provider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// Config enumerates the provider settings.
type Config struct {
	// APIKey authenticates against the backend (may be a placeholder for
	// local backends that ignore it).
	APIKey string
	// BaseURL overrides the API endpoint (empty = api.openai.com).
	BaseURL string
	// Model is the default model name.
	Model string
}

// NewProvider creates a Provider for the configured backend.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Name implements outbound.ModelProvider.
func (p *Provider) Name() string {
	return "openai"
}

// StreamChat starts one streaming completion and forwards its events.
func (p *Provider) StreamChat(ctx context.Context, req outbound.ChatRequest) (<-chan outbound.ChatEvent, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := openai.ChatCompletionRequest{
		Model:         p.model,
		Messages:      convertMessages(req.Messages),
		Tools:         convertTools(req.Tools),
		MaxTokens:     maxTokens,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("create completion stream: %w", err)
	}

	events := make(chan outbound.ChatEvent, eventBuffer)
	go func() {
		defer close(events)
		defer stream.Close()
		p.pump(ctx, stream, events)
	}()
	return events, nil
}

// pump reads stream chunks, forwarding text tokens immediately and
// assembling tool-call fragments until the stream ends.
func (p *Provider) pump(ctx context.Context, stream *openai.ChatCompletionStream, events chan<- outbound.ChatEvent) {
	assembler := newToolCallAssembler()
	var usage *conversation.TokenUsage

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			events <- outbound.ChatEvent{Err: fmt.Errorf("provider stream: %w", err)}
			return
		}

		if resp.Usage != nil {
			usage = &conversation.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				select {
				case events <- outbound.ChatEvent{Token: choice.Delta.Content}:
				case <-ctx.Done():
					events <- outbound.ChatEvent{Err: ctx.Err()}
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				assembler.add(tc)
			}
		}
	}

	calls, err := assembler.calls()
	if err != nil {
		events <- outbound.ChatEvent{Err: err}
		return
	}
	if len(calls) > 0 {
		events <- outbound.ChatEvent{ToolCalls: calls}
	}
	events <- outbound.ChatEvent{Done: true, Usage: usage}
}

// toolCallAssembler accumulates streamed tool-call fragments by index. The
// backend sends the ID and name once, then argument JSON in pieces.
type toolCallAssembler struct {
	order []int
	byIdx map[int]*partialCall
}

type partialCall struct {
	id   string
	name string
	args []byte
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{byIdx: make(map[int]*partialCall)}
}

func (a *toolCallAssembler) add(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	pc, ok := a.byIdx[idx]
	if !ok {
		pc = &partialCall{}
		a.byIdx[idx] = pc
		a.order = append(a.order, idx)
	}
	if tc.ID != "" {
		pc.id = tc.ID
	}
	if tc.Function.Name != "" {
		pc.name = tc.Function.Name
	}
	pc.args = append(pc.args, tc.Function.Arguments...)
}

func (a *toolCallAssembler) calls() ([]conversation.ToolCall, error) {
	if len(a.byIdx) == 0 {
		return nil, nil
	}
	sort.Ints(a.order)
	out := make([]conversation.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		pc := a.byIdx[idx]
		call := conversation.ToolCall{ID: pc.id, Name: pc.name}
		if len(pc.args) > 0 {
			if err := json.Unmarshal(pc.args, &call.Arguments); err != nil {
				return nil, fmt.Errorf("tool call %s: malformed arguments: %w", pc.name, err)
			}
		}
		out = append(out, call)
	}
	return out, nil
}

// convertMessages translates conversation history to the wire format,
// including assistant tool-call turns and their tool-result replies.
func convertMessages(messages []conversation.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, m)
	}
	return out
}

// convertTools translates tool definitions to the wire format.
func convertTools(tools []outbound.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// Compile-time interface verification.
var _ outbound.ModelProvider = (*Provider)(nil)
