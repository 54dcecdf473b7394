// Package httpapi is the HTTP inbound adapter: the action endpoint, the
// conversational endpoints with server-sent event streaming, and the admin
// key management API.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/service"
)

// maxBodyBytes bounds request bodies; action payloads are configuration
// fragments, not bulk data.
const maxBodyBytes = 1 << 20

// Handler owns the HTTP routes and their collaborators.
type Handler struct {
	keys          *auth.KeyManager
	policy        policy.Engine
	executor      *service.ExecutorService
	conversations *service.ConversationService
	recorder      audit.Recorder
	metrics       *Metrics
	logger        *slog.Logger
	version       string
}

// HandlerSpec enumerates the Handler's collaborators.
type HandlerSpec struct {
	Keys          *auth.KeyManager
	Policy        policy.Engine
	Executor      *service.ExecutorService
	Conversations *service.ConversationService
	Recorder      audit.Recorder
	Metrics       *Metrics
	Logger        *slog.Logger
	Version       string
}

// NewHandler creates the HTTP handler.
func NewHandler(spec HandlerSpec) *Handler {
	return &Handler{
		keys:          spec.Keys,
		policy:        spec.Policy,
		executor:      spec.Executor,
		conversations: spec.Conversations,
		recorder:      spec.Recorder,
		metrics:       spec.Metrics,
		logger:        spec.Logger,
		version:       spec.Version,
	}
}

// Routes returns the assembled route tree.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated surface.
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))

	// Action surface.
	mux.HandleFunc("POST /v1/actions", h.withAuth(h.handleExecuteAction))
	mux.HandleFunc("POST /v1/actions/evaluate", h.withAuth(h.handleEvaluateAction))

	// Conversation surface.
	mux.HandleFunc("POST /v1/conversations", h.withAuth(h.handleStartConversation))
	mux.HandleFunc("GET /v1/conversations/{id}", h.withAuth(h.handleGetConversation))
	mux.HandleFunc("DELETE /v1/conversations/{id}", h.withAuth(h.handleEndConversation))
	mux.HandleFunc("POST /v1/conversations/{id}/messages", h.withAuth(h.handleSendMessage))

	// Admin key lifecycle.
	mux.HandleFunc("GET /v1/admin/keys", h.withAuth(h.requireAdmin(h.handleListKeys)))
	mux.HandleFunc("POST /v1/admin/keys", h.withAuth(h.requireAdmin(h.handleCreateKey)))
	mux.HandleFunc("GET /v1/admin/keys/{id}", h.withAuth(h.requireAdmin(h.handleGetKey)))
	mux.HandleFunc("DELETE /v1/admin/keys/{id}", h.withAuth(h.requireAdmin(h.handleDeleteKey)))
	mux.HandleFunc("POST /v1/admin/keys/{id}/revoke", h.withAuth(h.requireAdmin(h.handleRevokeKey)))
	mux.HandleFunc("POST /v1/admin/keys/{id}/enable", h.withAuth(h.requireAdmin(h.handleEnableKey)))
	mux.HandleFunc("PUT /v1/admin/keys/{id}/permissions", h.withAuth(h.requireAdmin(h.handleUpdateKeyPermissions)))

	return h.withRequestID(h.withMetrics(mux))
}

// respondJSON writes a JSON response with the given status.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", "error", err)
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// respondError writes a JSON error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}

// readJSON decodes a bounded JSON request body.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
