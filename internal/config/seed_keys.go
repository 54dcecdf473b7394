package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// SeedKeysFile is the on-disk format of pre-provisioned API keys. Only
// hashes live in the file; raw keys are hashed out-of-band with the
// hash-key subcommand.
type SeedKeysFile struct {
	Keys []SeedKey `yaml:"keys"`
}

// SeedKey is one pre-provisioned API key.
type SeedKey struct {
	// ID is the unique key identifier (shows up as the user ID in audit
	// entries).
	ID string `yaml:"id"`
	// Name is a human-readable label.
	Name string `yaml:"name"`
	// KeyHash is either "sha256:<hex>" (requires Salt) or an Argon2id PHC
	// string ("$argon2id$...").
	KeyHash string `yaml:"key_hash"`
	// Salt is the hex-encoded salt for sha256 hashes.
	Salt string `yaml:"salt"`
	// KeyPrefix is the display prefix of the raw key.
	KeyPrefix string `yaml:"key_prefix"`
	// Permissions are the granted permission codes.
	Permissions []string `yaml:"permissions"`
	// DryRunOnly restricts the key to simulation-only actions.
	DryRunOnly bool `yaml:"dry_run_only"`
	// ExpiresAt is an optional RFC 3339 expiry.
	ExpiresAt string `yaml:"expires_at"`
	// Metadata is optional free-form context.
	Metadata map[string]string `yaml:"metadata"`
}

// LoadSeedKeys reads and validates a seed key file, returning domain keys
// ready for the key store.
func LoadSeedKeys(path string) ([]*auth.APIKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed keys file: %w", err)
	}

	var file SeedKeysFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed keys file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Keys))
	keys := make([]*auth.APIKey, 0, len(file.Keys))
	for i, seed := range file.Keys {
		key, err := seed.toAPIKey()
		if err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
		if _, dup := seen[key.ID]; dup {
			return nil, fmt.Errorf("keys[%d]: duplicate key id: %s", i, key.ID)
		}
		seen[key.ID] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s SeedKey) toAPIKey() (*auth.APIKey, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if s.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	switch {
	case strings.HasPrefix(s.KeyHash, "sha256:"):
		if s.Salt == "" {
			return nil, fmt.Errorf("sha256 key_hash requires a salt")
		}
	case strings.HasPrefix(s.KeyHash, "$argon2id$"):
		// PHC strings embed their own salt.
	default:
		return nil, fmt.Errorf("key_hash must start with %q or %q", "sha256:", "$argon2id$")
	}

	if len(s.Permissions) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	perms := make([]auth.Permission, 0, len(s.Permissions))
	for _, p := range s.Permissions {
		perms = append(perms, auth.Permission(p))
	}

	var expiresAt *time.Time
	if s.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, s.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("expires_at must be RFC 3339: %w", err)
		}
		expiresAt = &t
	}

	return &auth.APIKey{
		ID:          s.ID,
		Name:        s.Name,
		KeyHash:     s.KeyHash,
		Salt:        s.Salt,
		KeyPrefix:   s.KeyPrefix,
		Permissions: auth.NewPermissionSet(perms...),
		Enabled:     true,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
		DryRunOnly:  s.DryRunOnly,
		Metadata:    s.Metadata,
	}, nil
}
