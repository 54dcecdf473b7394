package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/ctxkey"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// withRequestID assigns each request an ID, honoring an inbound X-Request-ID.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctxkey.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
// through the middleware chain.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withMetrics instruments and logs every request.
func (h *Handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		duration := time.Since(start)
		h.metrics.ObserveRequest(r.Method, r.URL.Path, sr.status, duration)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration_ms", duration.Milliseconds(),
			"request_id", ctxkey.RequestID(r.Context()))
	})
}

// withAuth validates the bearer API key and attaches the resolved auth
// context. Every failure is audited and answered with a uniform 401 so
// callers cannot distinguish unknown keys from revoked or expired ones.
func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey, ok := bearerToken(r)
		if !ok {
			h.auditAuthFailure(r, "missing or malformed authorization header")
			h.respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		authCtx, err := h.keys.ValidateKey(r.Context(), rawKey)
		if err != nil {
			h.auditAuthFailure(r, "key validation failed")
			h.respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		h.recorder.Record(audit.NewEntry(audit.EntrySpec{
			CorrelationID: ctxkey.RequestID(r.Context()),
			Category:      audit.CategoryAuth,
			EventType:     audit.EventAuthSucceeded,
			UserID:        authCtx.UserID,
			Details:       map[string]interface{}{"path": r.URL.Path},
		}))

		next(w, r.WithContext(ctxkey.WithAuthContext(r.Context(), authCtx)))
	}
}

// requireAdmin gates a handler on the admin permission.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := ctxkey.AuthContext(r.Context())
		if !ok || !authCtx.IsAdmin() {
			h.respondError(w, http.StatusForbidden, "admin permission required")
			return
		}
		next(w, r)
	}
}

// authContext extracts the authenticated caller; withAuth guarantees it.
func (h *Handler) authContext(r *http.Request) *auth.Context {
	authCtx, _ := ctxkey.AuthContext(r.Context())
	return authCtx
}

func (h *Handler) auditAuthFailure(r *http.Request, reason string) {
	h.metrics.IncAuthFailure()
	h.recorder.Record(audit.NewEntry(audit.EntrySpec{
		CorrelationID: ctxkey.RequestID(r.Context()),
		Category:      audit.CategoryAuth,
		EventType:     audit.EventAuthFailed,
		Details: map[string]interface{}{
			"path":        r.URL.Path,
			"reason":      reason,
			"remote_addr": r.RemoteAddr,
		},
	}))
}

// bearerToken extracts the bearer credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
