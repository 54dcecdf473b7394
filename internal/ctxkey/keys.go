// Package ctxkey defines the context keys shared between middleware and
// handlers. Unexported key types prevent collisions with other packages.
package ctxkey

import (
	"context"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

type authContextKey struct{}

type requestIDKey struct{}

// WithAuthContext returns a context carrying the authenticated caller.
func WithAuthContext(ctx context.Context, ac *auth.Context) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContext extracts the authenticated caller, if present.
func AuthContext(ctx context.Context) (*auth.Context, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*auth.Context)
	return ac, ok
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
