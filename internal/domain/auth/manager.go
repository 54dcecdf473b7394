package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

// RawKeyPrefix is the fixed marker prepended to every generated raw key so
// validators can reject obviously malformed input before any hashing.
const RawKeyPrefix = "igk_"

// DisplayPrefixLength is how many characters of the raw key are retained as
// the displayable prefix.
const DisplayPrefixLength = 12

// secretLength is the number of random bytes in a generated secret.
const secretLength = 32

// saltLength is the number of random bytes in a generated salt.
const saltLength = 16

// ErrInvalidKey is returned for any authentication failure: unknown, revoked,
// expired, or malformed keys all produce the same error so callers cannot
// enumerate keys.
var ErrInvalidKey = errors.New("invalid api key")

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// argon2idParams defines OWASP minimum parameters for Argon2id, used when
// hashing seeded keys via the hash-key command.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// KeyManager issues, validates, and administers API keys. Validation is
// O(active keys) because candidates are matched against per-key salts; key
// counts are small, and the salted design means a compromised store never
// discloses usable secrets.
type KeyManager struct {
	store  KeyStore
	logger *slog.Logger
}

// NewKeyManager creates a KeyManager backed by the given store.
func NewKeyManager(store KeyStore, logger *slog.Logger) *KeyManager {
	return &KeyManager{store: store, logger: logger}
}

// CreateKeySpec enumerates every field of a new key.
type CreateKeySpec struct {
	Name        string
	Permissions PermissionSet
	ExpiresAt   *time.Time
	DryRunOnly  bool
	Metadata    map[string]string
}

// CreateKey draws a cryptographically secure secret and an independent salt,
// stores only the salted hash, and returns the raw key exactly once. Losing
// the raw value requires issuing a new key.
func (m *KeyManager) CreateKey(ctx context.Context, spec CreateKeySpec) (*APIKey, string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, "", errors.New("key name is required")
	}

	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", fmt.Errorf("generate key secret: %w", err)
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, "", fmt.Errorf("generate key salt: %w", err)
	}

	rawKey := RawKeyPrefix + hex.EncodeToString(secret)
	saltHex := hex.EncodeToString(salt)

	perms := spec.Permissions
	if perms == nil {
		perms = NewPermissionSet()
	}

	key := &APIKey{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		KeyHash:     HashKey(saltHex, rawKey),
		Salt:        saltHex,
		KeyPrefix:   rawKey[:DisplayPrefixLength],
		Permissions: perms.Clone(),
		Enabled:     true,
		ExpiresAt:   spec.ExpiresAt,
		CreatedAt:   time.Now().UTC(),
		DryRunOnly:  spec.DryRunOnly,
		Metadata:    spec.Metadata,
	}

	if err := m.store.Put(ctx, key); err != nil {
		return nil, "", fmt.Errorf("store api key: %w", err)
	}

	m.logger.Info("api key created",
		"key_id", key.ID,
		"name", key.Name,
		"prefix", key.KeyPrefix,
		"permissions", len(key.Permissions),
	)

	return key, rawKey, nil
}

// ValidateKey checks a raw key and returns the resolved AuthContext.
// Un-prefixed or empty input fails closed with no hashing attempted. Any
// failure returns ErrInvalidKey; callers must treat it as unauthenticated,
// never partial trust.
func (m *KeyManager) ValidateKey(ctx context.Context, rawKey string) (*Context, error) {
	if rawKey == "" || !strings.HasPrefix(rawKey, RawKeyPrefix) {
		return nil, ErrInvalidKey
	}

	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, ErrInvalidKey
	}

	for _, candidate := range keys {
		match, verifyErr := VerifyKey(rawKey, candidate.Salt, candidate.KeyHash)
		if verifyErr != nil || !match {
			continue
		}
		if !candidate.IsValid() {
			return nil, ErrInvalidKey
		}

		// Record last use; replace wholesale so readers never see a
		// half-updated entity.
		touched := candidate.clone()
		touched.LastUsedAt = time.Now().UTC()
		if putErr := m.store.Put(ctx, touched); putErr != nil {
			m.logger.Warn("failed to record key last use", "key_id", candidate.ID, "error", putErr)
		}

		return ContextFromKey(candidate), nil
	}

	return nil, ErrInvalidKey
}

// RevokeKey disables a key in place.
func (m *KeyManager) RevokeKey(ctx context.Context, id string) error {
	return m.setEnabled(ctx, id, false)
}

// EnableKey re-enables a previously revoked key.
func (m *KeyManager) EnableKey(ctx context.Context, id string) error {
	return m.setEnabled(ctx, id, true)
}

func (m *KeyManager) setEnabled(ctx context.Context, id string, enabled bool) error {
	key, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	updated := key.clone()
	updated.Enabled = enabled
	if err := m.store.Put(ctx, updated); err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	m.logger.Info("api key enabled state changed", "key_id", id, "enabled", enabled)
	return nil
}

// DeleteKey removes a key from both indices.
func (m *KeyManager) DeleteKey(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("api key deleted", "key_id", id)
	return nil
}

// UpdateKeyPermissions replaces the key's permission set, preserving ID,
// hash, salt, and creation metadata (copy-on-write, never in-place).
func (m *KeyManager) UpdateKeyPermissions(ctx context.Context, id string, perms PermissionSet) (*APIKey, error) {
	key, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := key.clone()
	updated.Permissions = perms.Clone()
	if err := m.store.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("update api key: %w", err)
	}
	m.logger.Info("api key permissions updated", "key_id", id, "permissions", len(perms))
	return updated, nil
}

// GetKey retrieves a key by ID.
func (m *KeyManager) GetKey(ctx context.Context, id string) (*APIKey, error) {
	return m.store.GetByID(ctx, id)
}

// GetKeyByPrefix retrieves a key by its displayable prefix.
// Returns ErrKeyNotFound if no key matches.
func (m *KeyManager) GetKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if key.KeyPrefix == prefix {
			return key, nil
		}
	}
	return nil, ErrKeyNotFound
}

// ListKeys returns all keys for administrative listing.
func (m *KeyManager) ListKeys(ctx context.Context) ([]*APIKey, error) {
	return m.store.List(ctx)
}

// ListActiveKeys filters the listing to keys that are currently valid.
func (m *KeyManager) ListActiveKeys(ctx context.Context) ([]*APIKey, error) {
	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*APIKey, 0, len(keys))
	for _, key := range keys {
		if key.IsValid() {
			active = append(active, key)
		}
	}
	return active, nil
}

// HashKey returns the stored-hash form of a raw key under the given hex salt:
// "sha256:" + hex(SHA-256(salt || rawKey)).
func HashKey(saltHex, rawKey string) string {
	h := sha256.New()
	h.Write([]byte(saltHex))
	h.Write([]byte(rawKey))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// HashKeyArgon2id returns an Argon2id hash of a raw key in PHC format, for
// seeding keys through configuration. The PHC string embeds its own salt.
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// VerifyKey verifies a raw key against a stored salt and hash. Supports the
// salted SHA-256 format used for generated keys and Argon2id PHC hashes used
// for config-seeded keys. Returns ErrUnknownHashType for unrecognized formats.
func VerifyKey(rawKey, saltHex, storedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return safeArgon2idCompare(rawKey, storedHash)
	case strings.HasPrefix(storedHash, "sha256:"):
		computed := HashKey(saltHex, rawKey)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery: the underlying library panics on malformed PHC parameters.
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
