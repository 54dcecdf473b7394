package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/service"
)

// startConversationRequest is the JSON body for starting a conversation.
type startConversationRequest struct {
	// Project scopes relative resource paths the model emits.
	Project string `json:"project"`
	// Path scopes relative resource paths within the project.
	Path string `json:"path"`
}

// conversationResponse is the JSON representation of a conversation.
type conversationResponse struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"createdAt"`
	Project      string `json:"project,omitempty"`
	Path         string `json:"path,omitempty"`
	MessageCount int    `json:"messageCount"`
	LastActivity string `json:"lastActivity"`
}

// handleStartConversation creates a conversation bound to the caller's key.
// POST /v1/conversations
func (h *Handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	authCtx := h.authContext(r)

	// The body is optional; an absent body starts an unscoped conversation.
	var req startConversationRequest
	if err := h.readJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := h.conversations.Start(r.Context(), service.StartSpec{
		AuthContext:    authCtx,
		CurrentProject: req.Project,
		CurrentPath:    req.Path,
	})
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}

	h.respondJSON(w, http.StatusCreated, toConversationResponse(conv))
}

// handleGetConversation returns conversation metadata.
// GET /v1/conversations/{id}
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, toConversationResponse(conv))
}

// handleEndConversation removes a conversation.
// DELETE /v1/conversations/{id}
func (h *Handler) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}
	if err := h.conversations.End(r.Context(), conv.ID); err != nil {
		h.logger.Error("failed to end conversation", "error", err, "conversation_id", conv.ID)
		h.respondError(w, http.StatusInternalServerError, "failed to end conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendMessageRequest is the JSON body for sending a message.
type sendMessageRequest struct {
	Text string `json:"text"`
}

// handleSendMessage runs one conversational turn, streaming progress as
// server-sent events.
// POST /v1/conversations/{id}/messages
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		h.respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	// Errors are reported on the stream itself; the status line is already
	// committed by the time the turn runs.
	if err := h.conversations.SendMessage(r.Context(), conv.ID, req.Text, stream); err != nil {
		h.logger.Warn("message turn failed",
			"conversation_id", conv.ID,
			"error", err)
	}
}

// ownedConversation loads the path's conversation and verifies the caller
// owns it. Foreign conversations are indistinguishable from missing ones.
func (h *Handler) ownedConversation(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	authCtx := h.authContext(r)

	conv, err := h.conversations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			h.respondError(w, http.StatusNotFound, "conversation not found")
		} else {
			h.logger.Error("failed to load conversation", "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to load conversation")
		}
		return nil, false
	}
	if conv.AuthContext.UserID != authCtx.UserID {
		h.respondError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return conv, true
}

func toConversationResponse(conv *conversation.Conversation) conversationResponse {
	return conversationResponse{
		ID:           conv.ID,
		CreatedAt:    conv.CreatedAt.UTC().Format(time.RFC3339),
		Project:      conv.CurrentProject,
		Path:         conv.CurrentPath,
		MessageCount: conv.Len(),
		LastActivity: conv.LastActivity().UTC().Format(time.RFC3339),
	}
}
