package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
)

const (
	defaultMaxTurns       = 10
	defaultWorkerPoolSize = 32
	defaultShutdownGrace  = 10 * time.Second
)

// ErrTurnLimit is surfaced via OnError when a message exceeds the tool-call
// turn budget without the model producing a final answer.
var ErrTurnLimit = errors.New("turn limit exceeded")

// defaultSystemPrompt frames the model's role. Composition may override it.
const defaultSystemPrompt = "You are an assistant operating on an industrial gateway's configuration " +
	"through guarded tools. Destructive operations require explicit user confirmation: " +
	"describe what would change, ask the user, and only then retry with confirm set. " +
	"Prefer dry runs when the user is exploring."

// ConversationService manages conversation sessions and drives the streaming
// turn loop: send history to the provider, surface tokens, execute tool calls
// through the policy engine and executor, feed results back, repeat until the
// model answers in prose or the turn budget runs out.
type ConversationService struct {
	store    conversation.Store
	provider outbound.ModelProvider
	policy   policy.Engine
	executor *ExecutorService
	recorder audit.Recorder
	logger   *slog.Logger
	pool     *workerPool

	maxTurns      int
	maxTokens     int
	systemPrompt  string
	shutdownGrace time.Duration
}

// ConversationOption configures a ConversationService.
type ConversationOption func(*ConversationService)

// WithMaxTurns bounds provider round-trips per user message.
func WithMaxTurns(n int) ConversationOption {
	return func(s *ConversationService) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithMaxTokens caps each completion's length.
func WithMaxTokens(n int) ConversationOption {
	return func(s *ConversationService) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithWorkerPoolSize bounds concurrently running turns.
func WithWorkerPoolSize(n int) ConversationOption {
	return func(s *ConversationService) {
		if n > 0 {
			s.pool = newWorkerPool(n)
		}
	}
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) ConversationOption {
	return func(s *ConversationService) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithShutdownGrace sets how long Shutdown waits for running turns.
func WithShutdownGrace(d time.Duration) ConversationOption {
	return func(s *ConversationService) {
		if d > 0 {
			s.shutdownGrace = d
		}
	}
}

// NewConversationService wires the conversation loop's collaborators.
func NewConversationService(
	store conversation.Store,
	provider outbound.ModelProvider,
	engine policy.Engine,
	executor *ExecutorService,
	recorder audit.Recorder,
	logger *slog.Logger,
	opts ...ConversationOption,
) *ConversationService {
	s := &ConversationService{
		store:         store,
		provider:      provider,
		policy:        engine,
		executor:      executor,
		recorder:      recorder,
		logger:        logger,
		pool:          newWorkerPool(defaultWorkerPoolSize),
		maxTurns:      defaultMaxTurns,
		systemPrompt:  defaultSystemPrompt,
		shutdownGrace: defaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSpec enumerates the settable fields of a new conversation.
type StartSpec struct {
	AuthContext    *auth.Context
	CurrentProject string
	CurrentPath    string
}

// Start creates a conversation bound to the caller's auth context.
func (s *ConversationService) Start(ctx context.Context, spec StartSpec) (*conversation.Conversation, error) {
	conv := conversation.New(conversation.Spec{
		AuthContext:    spec.AuthContext,
		SystemPrompt:   s.systemPrompt,
		CurrentProject: spec.CurrentProject,
		CurrentPath:    spec.CurrentPath,
	})
	if err := s.store.Put(ctx, conv); err != nil {
		return nil, fmt.Errorf("store conversation: %w", err)
	}
	s.logger.Info("conversation started", "conversation_id", conv.ID, "user_id", spec.AuthContext.UserID)
	return conv, nil
}

// Get returns the conversation with the given ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.store.Get(ctx, id)
}

// End removes a conversation.
func (s *ConversationService) End(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ReapExpired removes conversations idle past the timeout and returns how
// many were removed. Meant to be driven by a periodic caller.
func (s *ConversationService) ReapExpired(ctx context.Context, timeout time.Duration) int {
	convs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list conversations for reaping", "error", err)
		return 0
	}
	reaped := 0
	for _, conv := range convs {
		if conv.IsExpired(timeout) {
			if err := s.store.Delete(ctx, conv.ID); err != nil {
				s.logger.Error("failed to reap conversation", "conversation_id", conv.ID, "error", err)
				continue
			}
			reaped++
		}
	}
	if reaped > 0 {
		s.logger.Info("reaped expired conversations", "count", reaped)
	}
	return reaped
}

// SendMessage runs one user message through the turn loop, streaming events
// to handler. It blocks until the turn finishes; concurrency across
// conversations is bounded by the worker pool, and a saturated pool fails
// fast with ErrPoolSaturated instead of queueing.
//
// Unrecoverable faults reach the caller both as the returned error and via
// handler.OnError; the history appended so far is preserved so the caller
// can retry.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, text string, handler conversation.StreamHandler) error {
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	if err := s.pool.submit(ctx, func(tctx context.Context) {
		done <- s.runTurn(tctx, conv, text, handler)
	}); err != nil {
		handler.OnError(err)
		return err
	}
	return <-done
}

// Shutdown stops accepting messages and waits for running turns to drain.
// Turns still running when the grace period expires are force-terminated
// through their context; each cancelled turn surfaces the cancellation via
// its handler's OnError. The forced terminations are reported as an error.
func (s *ConversationService) Shutdown(ctx context.Context) error {
	grace := s.shutdownGrace
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < grace {
			grace = until
		}
	}
	if pending := s.pool.shutdown(grace); pending > 0 {
		return fmt.Errorf("shutdown grace expired, force-terminated %d running turns", pending)
	}
	return nil
}

func (s *ConversationService) runTurn(ctx context.Context, conv *conversation.Conversation, text string, handler conversation.StreamHandler) error {
	conv.Append(conversation.Message{Role: conversation.RoleUser, Content: text})
	tools := toolDefinitions(s.executor.RegisteredTypes())

	var usage conversation.TokenUsage
	for turn := 0; turn < s.maxTurns; turn++ {
		events, err := s.provider.StreamChat(ctx, outbound.ChatRequest{
			Messages:  conv.Snapshot(),
			Tools:     tools,
			MaxTokens: s.maxTokens,
		})
		if err != nil {
			handler.OnError(err)
			return err
		}

		var (
			assistant strings.Builder
			calls     []conversation.ToolCall
		)
	stream:
		for {
			// Forced shutdown cancels the turn context; a stalled provider
			// must not keep the turn alive past that point.
			select {
			case <-ctx.Done():
				handler.OnError(ctx.Err())
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					break stream
				}
				switch {
				case ev.Err != nil:
					handler.OnError(ev.Err)
					return ev.Err
				case ev.Token != "":
					assistant.WriteString(ev.Token)
					handler.OnToken(ev.Token)
				case len(ev.ToolCalls) > 0:
					calls = ev.ToolCalls
				case ev.Done:
					if ev.Usage != nil {
						usage.PromptTokens += ev.Usage.PromptTokens
						usage.CompletionTokens += ev.Usage.CompletionTokens
						usage.TotalTokens += ev.Usage.TotalTokens
					}
				}
			}
		}

		conv.Append(conversation.Message{
			Role:      conversation.RoleAssistant,
			Content:   assistant.String(),
			ToolCalls: calls,
		})

		if len(calls) == 0 {
			handler.OnComplete(assistant.String(), usage)
			return nil
		}

		for _, call := range calls {
			handler.OnToolCallStart(call)
			result := s.executeToolCall(ctx, conv, call)
			handler.OnToolCallComplete(call, result)
			conv.Append(conversation.Message{
				Role:       conversation.RoleTool,
				Content:    encodeToolResult(result),
				ToolCallID: call.ID,
			})
		}
	}

	handler.OnError(ErrTurnLimit)
	return ErrTurnLimit
}

// executeToolCall turns a parsed tool call into an action, authorizes it
// against the conversation's fixed auth context and executes it. Every
// failure mode comes back as a Result the model can read and react to; a
// denied or malformed call never aborts the conversation.
func (s *ConversationService) executeToolCall(ctx context.Context, conv *conversation.Conversation, call conversation.ToolCall) action.Result {
	req, parseErr := s.requestFromToolCall(conv, call)
	if parseErr != "" {
		s.auditRejected(conv, call, parseErr)
		return action.Result{
			Status:  action.StatusValidationFailed,
			Message: parseErr,
		}
	}

	act, vr := req.ToAction()
	if act == nil {
		s.auditRejected(conv, call, "tool call failed validation")
		return action.ValidationFailedResult(&action.Action{CorrelationID: req.CorrelationID}, vr)
	}

	if err := s.policy.Authorize(ctx, conv.AuthContext, act); err != nil {
		var confirm *policy.ConfirmationRequiredError
		if errors.As(err, &confirm) {
			return action.FailureResult(act,
				"confirmation required: "+confirm.Reason+
					". Ask the user to confirm, then retry with confirm set to true.")
		}
		return action.FailureResult(act, "not authorized: "+err.Error())
	}

	return s.executor.Execute(ctx, conv.AuthContext, act)
}

// requestFromToolCall maps tool-call arguments onto an action request. The
// returned string is a model-readable parse error; empty means success.
func (s *ConversationService) requestFromToolCall(conv *conversation.Conversation, call conversation.ToolCall) (*action.Request, string) {
	typ, ok := actionTypeForTool(call.Name)
	if !ok {
		return nil, fmt.Sprintf("unknown tool %q", call.Name)
	}
	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	req := &action.Request{
		CorrelationID: conv.NextCorrelationID(),
		Action:        string(typ),
		ResourceType:  argString(args, "resourceType"),
		ResourcePath:  conv.ResolvePath(argString(args, "resourcePath")),
		Recursive:     argBool(args, "recursive"),
		Depth:         argInt(args, "depth"),
		Options: action.OptionsRequest{
			DryRun:  argBool(args, "dryRun"),
			Force:   argBool(args, "confirm"),
			Comment: argString(args, "comment"),
		},
	}
	if payload, ok := args["payload"].(map[string]interface{}); ok {
		req.Payload = payload
	}
	if fields, ok := args["fields"].([]interface{}); ok {
		for _, f := range fields {
			if fs, ok := f.(string); ok {
				req.Fields = append(req.Fields, fs)
			}
		}
	}
	if merge, ok := args["merge"].(bool); ok {
		req.Merge = &merge
	}
	return req, ""
}

// auditRejected records tool calls that never became a valid action, since
// the executor only audits actions it receives.
func (s *ConversationService) auditRejected(conv *conversation.Conversation, call conversation.ToolCall, reason string) {
	s.recorder.Record(audit.NewEntry(audit.EntrySpec{
		CorrelationID: "conv-" + conv.ID,
		Category:      audit.CategoryAction,
		EventType:     audit.EventActionRejected,
		UserID:        conv.AuthContext.UserID,
		Details:       map[string]interface{}{"tool": call.Name, "reason": reason},
	}))
}

func encodeToolResult(result action.Result) string {
	b, err := json.Marshal(result)
	if err != nil {
		return `{"status":"failure","message":"result encoding failed"}`
	}
	return string(b)
}

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func argBool(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
