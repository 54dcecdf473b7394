package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/ctxkey"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// createKeyRequest is the JSON body for key creation.
type createKeyRequest struct {
	Name        string            `json:"name"`
	Permissions []string          `json:"permissions"`
	DryRunOnly  bool              `json:"dryRunOnly"`
	ExpiresAt   string            `json:"expiresAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// createKeyResponse carries the raw key. It is returned exactly once and
// never stored or logged.
type createKeyResponse struct {
	Key    keyResponse `json:"key"`
	RawKey string      `json:"rawKey"`
}

// keyResponse is the JSON representation of a stored key (no secrets).
type keyResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	KeyPrefix   string            `json:"keyPrefix"`
	Permissions []string          `json:"permissions"`
	Enabled     bool              `json:"enabled"`
	DryRunOnly  bool              `json:"dryRunOnly"`
	ExpiresAt   string            `json:"expiresAt,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	LastUsedAt  string            `json:"lastUsedAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// handleListKeys returns all stored keys.
// GET /v1/admin/keys
func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list keys", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list keys")
		return
	}
	result := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		result = append(result, toKeyResponse(k))
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleCreateKey issues a new API key.
// POST /v1/admin/keys
func (h *Handler) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Permissions) == 0 {
		h.respondError(w, http.StatusBadRequest, "at least one permission is required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "expiresAt must be RFC 3339")
			return
		}
		expiresAt = &t
	}

	perms := make([]auth.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, auth.Permission(p))
	}

	key, rawKey, err := h.keys.CreateKey(r.Context(), auth.CreateKeySpec{
		Name:        req.Name,
		Permissions: auth.NewPermissionSet(perms...),
		ExpiresAt:   expiresAt,
		DryRunOnly:  req.DryRunOnly,
		Metadata:    req.Metadata,
	})
	if err != nil {
		// Only the error is logged, never the raw key.
		h.logger.Error("failed to create key", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create key")
		return
	}

	h.auditKeyEvent(r, audit.EventAPIKeyCreated, key.ID, map[string]interface{}{
		"name":         key.Name,
		"permissions":  req.Permissions,
		"dry_run_only": key.DryRunOnly,
	})
	h.respondJSON(w, http.StatusCreated, createKeyResponse{
		Key:    toKeyResponse(key),
		RawKey: rawKey,
	})
}

// handleGetKey returns one key.
// GET /v1/admin/keys/{id}
func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.GetKey(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondKeyError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toKeyResponse(key))
}

// handleDeleteKey permanently removes a key.
// DELETE /v1/admin/keys/{id}
func (h *Handler) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.keys.DeleteKey(r.Context(), id); err != nil {
		h.respondKeyError(w, err)
		return
	}
	h.auditKeyEvent(r, audit.EventAPIKeyDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleRevokeKey disables a key.
// POST /v1/admin/keys/{id}/revoke
func (h *Handler) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.keys.RevokeKey(r.Context(), id); err != nil {
		h.respondKeyError(w, err)
		return
	}
	h.auditKeyEvent(r, audit.EventAPIKeyRevoked, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleEnableKey re-enables a revoked key.
// POST /v1/admin/keys/{id}/enable
func (h *Handler) handleEnableKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.keys.EnableKey(r.Context(), id); err != nil {
		h.respondKeyError(w, err)
		return
	}
	h.auditKeyEvent(r, audit.EventAPIKeyEnabled, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// updatePermissionsRequest is the JSON body for permission replacement.
type updatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// handleUpdateKeyPermissions replaces a key's permission set.
// PUT /v1/admin/keys/{id}/permissions
func (h *Handler) handleUpdateKeyPermissions(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionsRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Permissions) == 0 {
		h.respondError(w, http.StatusBadRequest, "at least one permission is required")
		return
	}

	perms := make([]auth.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, auth.Permission(p))
	}

	id := r.PathValue("id")
	key, err := h.keys.UpdateKeyPermissions(r.Context(), id, auth.NewPermissionSet(perms...))
	if err != nil {
		h.respondKeyError(w, err)
		return
	}
	h.auditKeyEvent(r, audit.EventAPIKeyModified, id, map[string]interface{}{
		"permissions": req.Permissions,
	})
	h.respondJSON(w, http.StatusOK, toKeyResponse(key))
}

func (h *Handler) respondKeyError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrKeyNotFound) {
		h.respondError(w, http.StatusNotFound, "key not found")
		return
	}
	h.logger.Error("key operation failed", "error", err)
	h.respondError(w, http.StatusInternalServerError, "key operation failed")
}

func (h *Handler) auditKeyEvent(r *http.Request, eventType, keyID string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["key_id"] = keyID
	h.recorder.Record(audit.NewEntry(audit.EntrySpec{
		CorrelationID: ctxkey.RequestID(r.Context()),
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        h.authContext(r).UserID,
		Details:       details,
	}))
}

func toKeyResponse(k *auth.APIKey) keyResponse {
	resp := keyResponse{
		ID:          k.ID,
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		Permissions: permissionStrings(k.Permissions),
		Enabled:     k.Enabled,
		DryRunOnly:  k.DryRunOnly,
		CreatedAt:   k.CreatedAt.UTC().Format(time.RFC3339),
		Metadata:    k.Metadata,
	}
	if k.ExpiresAt != nil {
		resp.ExpiresAt = k.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if !k.LastUsedAt.IsZero() {
		resp.LastUsedAt = k.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func permissionStrings(set auth.PermissionSet) []string {
	sorted := set.Sorted()
	out := make([]string, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, string(p))
	}
	return out
}
