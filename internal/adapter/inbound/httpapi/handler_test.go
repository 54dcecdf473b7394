package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/outbound/memory"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/port/outbound"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/service"
)

// recordingRecorder captures audit entries for assertions.
type recordingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingRecorder) Record(entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingRecorder) countByEventType(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// scriptedProvider replays fixed event streams, one per StreamChat call.
type scriptedProvider struct {
	mu    sync.Mutex
	turns [][]outbound.ChatEvent
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) StreamChat(ctx context.Context, req outbound.ChatRequest) (<-chan outbound.ChatEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var events []outbound.ChatEvent
	if p.calls < len(p.turns) {
		events = p.turns[p.calls]
	}
	p.calls++

	ch := make(chan outbound.ChatEvent, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	ch <- outbound.ChatEvent{Done: true}
	close(ch)
	return ch, nil
}

// fixture is a fully wired handler over in-memory adapters.
type fixture struct {
	handler  http.Handler
	keys     *auth.KeyManager
	recorder *recordingRecorder
	provider *scriptedProvider
}

func newFixture(t *testing.T, mode policy.Mode) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	recorder := &recordingRecorder{}

	keys := auth.NewKeyManager(memory.NewKeyStore(), logger)
	policySvc := service.NewPolicyService(mode, recorder, logger)
	executor := service.NewExecutorService(recorder, logger)
	executor.Register(memory.NewResourceStore(action.ResourceTag))

	provider := &scriptedProvider{}
	conversations := service.NewConversationService(
		memory.NewConversationStore(), provider, policySvc, executor, recorder, logger)

	h := NewHandler(HandlerSpec{
		Keys:          keys,
		Policy:        policySvc,
		Executor:      executor,
		Conversations: conversations,
		Recorder:      recorder,
		Metrics:       NewMetrics(),
		Logger:        logger,
		Version:       "test",
	})
	return &fixture{handler: h.Routes(), keys: keys, recorder: recorder, provider: provider}
}

// issueKey creates a key and returns its raw secret.
func (f *fixture) issueKey(t *testing.T, perms ...auth.Permission) string {
	t.Helper()
	_, rawKey, err := f.keys.CreateKey(context.Background(), auth.CreateKeySpec{
		Name:        "test key",
		Permissions: auth.NewPermissionSet(perms...),
	})
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	return rawKey
}

func (f *fixture) do(t *testing.T, method, path, rawKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if rawKey != "" {
		req.Header.Set("Authorization", "Bearer "+rawKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createTagRequest(path string) map[string]interface{} {
	return map[string]interface{}{
		"correlationId": "c-1",
		"action":        "create",
		"resourceType":  "tag",
		"resourcePath":  path,
		"payload":       map[string]interface{}{"dataType": "Int4"},
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, policy.ModeDevelopment)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeJSON[map[string]string](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthRejectsUniformly(t *testing.T) {
	f := newFixture(t, policy.ModeDevelopment)
	f.issueKey(t, "tag:read")

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "unknown key", header: "Bearer igk_doesnotexist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader("{}"))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			body := decodeJSON[errorResponse](t, rec)
			if body.Error != "invalid API key" {
				t.Errorf("error = %q, want the uniform message", body.Error)
			}
		})
	}

	if f.recorder.countByEventType(audit.EventAuthFailed) != len(tests) {
		t.Errorf("auth failure audit entries = %d, want %d",
			f.recorder.countByEventType(audit.EventAuthFailed), len(tests))
	}
}

func TestExecuteAction(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, policy.ModeDevelopment)
		key := f.issueKey(t, "tag:create")

		rec := f.do(t, http.MethodPost, "/v1/actions", key, createTagRequest("plc1/motor"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		result := decodeJSON[action.Result](t, rec)
		if result.Status != action.StatusSuccess || result.CorrelationID != "c-1" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("invalid JSON is 400", func(t *testing.T) {
		f := newFixture(t, policy.ModeDevelopment)
		key := f.issueKey(t, "tag:create")

		req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader("{not json"))
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("validation failure is 400 with field errors", func(t *testing.T) {
		f := newFixture(t, policy.ModeDevelopment)
		key := f.issueKey(t, "tag:create")

		body := createTagRequest("plc1/motor")
		delete(body, "payload")
		rec := f.do(t, http.MethodPost, "/v1/actions", key, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		result := decodeJSON[action.Result](t, rec)
		if result.Status != action.StatusValidationFailed || result.Validation == nil {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("denied is 403", func(t *testing.T) {
		f := newFixture(t, policy.ModeDevelopment)
		key := f.issueKey(t, "tag:read")

		rec := f.do(t, http.MethodPost, "/v1/actions", key, createTagRequest("plc1/motor"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		result := decodeJSON[action.Result](t, rec)
		if result.Status != action.StatusFailure {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("confirmation required is 409", func(t *testing.T) {
		f := newFixture(t, policy.ModeTest)
		key := f.issueKey(t, "tag:delete")

		// Seed the resource so only the confirmation gate stands in the way.
		createKey := f.issueKey(t, "tag:create")
		seed := f.do(t, http.MethodPost, "/v1/actions", createKey, createTagRequest("plc1/motor"))
		if seed.Code != http.StatusOK {
			t.Fatalf("seed status = %d", seed.Code)
		}

		rec := f.do(t, http.MethodPost, "/v1/actions", key, map[string]interface{}{
			"correlationId": "c-2",
			"action":        "delete",
			"resourceType":  "tag",
			"resourcePath":  "plc1/motor",
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}

		// Confirming with force goes through.
		rec = f.do(t, http.MethodPost, "/v1/actions", key, map[string]interface{}{
			"correlationId": "c-3",
			"action":        "delete",
			"resourceType":  "tag",
			"resourcePath":  "plc1/motor",
			"options":       map[string]interface{}{"force": true, "comment": "confirmed teardown"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("confirmed status = %d, body %s", rec.Code, rec.Body.String())
		}
	})
}

func TestEvaluateAction(t *testing.T) {
	f := newFixture(t, policy.ModeTest)
	key := f.issueKey(t, "tag:read")

	rec := f.do(t, http.MethodPost, "/v1/actions/evaluate", key, map[string]interface{}{
		"correlationId": "c-1",
		"action":        "delete",
		"resourceType":  "tag",
		"resourcePath":  "plc1/motor",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON[evaluateResponse](t, rec)
	if body.Effect != string(policy.EffectRequireConfirmation) {
		t.Errorf("effect = %q, want require_confirmation", body.Effect)
	}
}

func TestAdminKeyLifecycle(t *testing.T) {
	f := newFixture(t, policy.ModeDevelopment)
	adminKey := f.issueKey(t, auth.PermissionAdmin)

	t.Run("non-admin is 403", func(t *testing.T) {
		plainKey := f.issueKey(t, "tag:read")
		rec := f.do(t, http.MethodGet, "/v1/admin/keys", plainKey, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	var created createKeyResponse
	t.Run("create returns the raw key once", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/admin/keys", adminKey, createKeyRequest{
			Name:        "ops",
			Permissions: []string{"tag:read", "tag:update"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		created = decodeJSON[createKeyResponse](t, rec)
		if !strings.HasPrefix(created.RawKey, auth.RawKeyPrefix) {
			t.Errorf("RawKey = %q, want %s prefix", created.RawKey, auth.RawKeyPrefix)
		}
		if created.Key.ID == "" || !created.Key.Enabled {
			t.Errorf("key = %+v", created.Key)
		}

		// The issued key authenticates.
		check := f.do(t, http.MethodPost, "/v1/actions/evaluate", created.RawKey, createTagRequest("plc1/x"))
		if check.Code != http.StatusOK {
			t.Errorf("issued key evaluate status = %d", check.Code)
		}
	})

	t.Run("create without permissions is 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/admin/keys", adminKey, createKeyRequest{Name: "empty"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("list includes the created key without secrets", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/admin/keys", adminKey, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), created.RawKey) {
			t.Error("raw key leaked in the list response")
		}
		keys := decodeJSON[[]keyResponse](t, rec)
		if len(keys) < 2 {
			t.Errorf("listed %d keys", len(keys))
		}
	})

	t.Run("revoke disables authentication", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/admin/keys/"+created.Key.ID+"/revoke", adminKey, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("revoke status = %d, body %s", rec.Code, rec.Body.String())
		}
		check := f.do(t, http.MethodPost, "/v1/actions/evaluate", created.RawKey, createTagRequest("plc1/x"))
		if check.Code != http.StatusUnauthorized {
			t.Errorf("revoked key status = %d, want 401", check.Code)
		}
	})

	t.Run("enable restores authentication", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/admin/keys/"+created.Key.ID+"/enable", adminKey, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("enable status = %d", rec.Code)
		}
		check := f.do(t, http.MethodPost, "/v1/actions/evaluate", created.RawKey, createTagRequest("plc1/x"))
		if check.Code != http.StatusOK {
			t.Errorf("re-enabled key status = %d, want 200", check.Code)
		}
	})

	t.Run("update permissions", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/v1/admin/keys/"+created.Key.ID+"/permissions", adminKey,
			map[string]interface{}{"permissions": []string{"tag:read"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		key := decodeJSON[keyResponse](t, rec)
		if len(key.Permissions) != 1 || key.Permissions[0] != "tag:read" {
			t.Errorf("Permissions = %v", key.Permissions)
		}
	})

	t.Run("delete removes the key", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/v1/admin/keys/"+created.Key.ID, adminKey, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete status = %d", rec.Code)
		}
		rec = f.do(t, http.MethodGet, "/v1/admin/keys/"+created.Key.ID, adminKey, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("get after delete = %d, want 404", rec.Code)
		}
	})

	if f.recorder.countByEventType(audit.EventAPIKeyCreated) == 0 {
		t.Error("key creation was not audited")
	}
	if f.recorder.countByEventType(audit.EventAPIKeyRevoked) == 0 {
		t.Error("key revocation was not audited")
	}
}

func TestConversationEndpoints(t *testing.T) {
	f := newFixture(t, policy.ModeDevelopment)
	key := f.issueKey(t, "tag:read")

	var conv conversationResponse
	t.Run("start", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/conversations", key,
			map[string]interface{}{"project": "site-a", "path": "plc1"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		conv = decodeJSON[conversationResponse](t, rec)
		if conv.ID == "" || conv.Project != "site-a" {
			t.Errorf("conversation = %+v", conv)
		}
	})

	t.Run("start without body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/conversations", key, nil)
		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", rec.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/conversations/"+conv.ID, key, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("foreign conversation is 404", func(t *testing.T) {
		otherKey := f.issueKey(t, "tag:read")
		rec := f.do(t, http.MethodGet, "/v1/conversations/"+conv.ID, otherKey, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unknown conversation is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/conversations/missing", key, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("send message streams SSE", func(t *testing.T) {
		f.provider.mu.Lock()
		f.provider.turns = [][]outbound.ChatEvent{
			{{Token: "System "}, {Token: "healthy."}},
		}
		f.provider.calls = 0
		f.provider.mu.Unlock()

		rec := f.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", key,
			map[string]interface{}{"text": "how is the system?"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("Content-Type = %q", ct)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "event: token") {
			t.Errorf("stream missing token events: %s", body)
		}
		if !strings.Contains(body, "event: complete") {
			t.Errorf("stream missing complete event: %s", body)
		}
	})

	t.Run("send message requires text", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", key,
			map[string]interface{}{"text": ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("end", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/v1/conversations/"+conv.ID, key, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		rec = f.do(t, http.MethodGet, "/v1/conversations/"+conv.ID, key, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("get after end = %d, want 404", rec.Code)
		}
	})
}
