// Package auth contains the domain types and logic for API-key
// authentication and the capability model that gates actions.
package auth

import (
	"fmt"
	"sort"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
)

// Permission is an atomic capability code of the form
// "{resourceType}:{create|read|update|delete}", plus the distinguished
// "admin" code that satisfies every check unconditionally.
type Permission string

// PermissionAdmin satisfies every permission check.
const PermissionAdmin Permission = "admin"

// PermissionFor returns the permission gating one (resourceType, actionType)
// pair. List actions resolve to the read permission. Returns ("", false) for
// unknown combinations; callers must treat that as a denial (allow-listing).
func PermissionFor(rt action.ResourceType, at action.Type) (Permission, bool) {
	if !rt.IsValid() {
		return "", false
	}
	verb := ""
	switch at {
	case action.TypeCreate:
		verb = "create"
	case action.TypeRead, action.TypeList:
		verb = "read"
	case action.TypeUpdate:
		verb = "update"
	case action.TypeDelete:
		verb = "delete"
	default:
		return "", false
	}
	return Permission(fmt.Sprintf("%s:%s", rt, verb)), true
}

// DeletePermissionFor returns the resource-type-specific delete permission.
// Production mode requires it for any destructive action short of admin.
func DeletePermissionFor(rt action.ResourceType) Permission {
	return Permission(fmt.Sprintf("%s:delete", rt))
}

// PermissionSet is an unordered set of capability codes.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given codes.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	cp := make(PermissionSet, len(s))
	for p := range s {
		cp[p] = struct{}{}
	}
	return cp
}

// Sorted returns the codes in lexical order, for display and stable logs.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// APIKey is the stored form of an issued key. The raw secret is never stored:
// only the salted hash survives creation.
type APIKey struct {
	// ID is an opaque generated identifier.
	ID string
	// Name is a human-readable label.
	Name string
	// KeyHash is the one-way digest of the raw key. Generated keys use
	// "sha256:" + hex(SHA-256(salt || rawKey)); config-seeded keys may carry
	// an Argon2id PHC hash instead.
	KeyHash string
	// Salt is the hex-encoded per-key random salt (empty for PHC hashes,
	// which embed their own).
	Salt string
	// KeyPrefix is the first characters of the raw key, safe to display.
	KeyPrefix string
	// Permissions is the granted capability set.
	Permissions PermissionSet
	// Enabled is false after revocation.
	Enabled bool
	// ExpiresAt is when the key expires (nil = never).
	ExpiresAt *time.Time
	// CreatedAt is when the key was created (UTC).
	CreatedAt time.Time
	// LastUsedAt is updated on every successful validation (UTC, zero = never).
	LastUsedAt time.Time
	// DryRunOnly restricts the key to simulation-only actions.
	DryRunOnly bool
	// Metadata is optional free-form context.
	Metadata map[string]string
}

// IsValid reports whether the key is usable: enabled and unexpired.
func (k *APIKey) IsValid() bool {
	if !k.Enabled {
		return false
	}
	if k.ExpiresAt != nil && !time.Now().UTC().Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// clone returns a deep copy so concurrent readers never observe mutation.
func (k *APIKey) clone() *APIKey {
	cp := *k
	cp.Permissions = k.Permissions.Clone()
	if k.ExpiresAt != nil {
		exp := *k.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if k.Metadata != nil {
		cp.Metadata = make(map[string]string, len(k.Metadata))
		for mk, mv := range k.Metadata {
			cp.Metadata[mk] = mv
		}
	}
	return &cp
}

// Context is the resolved identity produced from a validated API key.
type Context struct {
	// UserID identifies the caller; for key-authenticated callers this is the
	// key ID.
	UserID string
	// KeyName is the human-readable key label.
	KeyName string
	// Permissions is the caller's granted capability set.
	Permissions PermissionSet
	// DryRunOnly restricts the caller to simulation-only actions.
	DryRunOnly bool
}

// IsAdmin reports whether the caller holds the admin permission.
func (c *Context) IsAdmin() bool {
	return c.Permissions.Has(PermissionAdmin)
}

// Has reports whether the caller holds the permission (admin always does).
func (c *Context) Has(p Permission) bool {
	return c.IsAdmin() || c.Permissions.Has(p)
}

// ContextFromKey resolves an AuthContext from a validated key.
func ContextFromKey(key *APIKey) *Context {
	return &Context{
		UserID:      key.ID,
		KeyName:     key.Name,
		Permissions: key.Permissions.Clone(),
		DryRunOnly:  key.DryRunOnly,
	}
}
