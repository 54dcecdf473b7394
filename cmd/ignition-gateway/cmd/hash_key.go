package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

var hashKeyArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [raw-key]",
	Short: "Hash a raw API key for the seed key file",
	Long: `Hash a raw API key for use in the auth seed key file.

By default a random salt is generated and the output is a salted SHA-256
hash. With --argon2id the output is a PHC-format Argon2id hash, which embeds
its own salt.

Example:
  ignition-gateway hash-key "igk_..."
  # Output:
  #   key_hash: sha256:7d5e8c...
  #   salt: 4f2a...

Security note: the key will appear in shell history. Consider clearing
history after use or passing an environment variable:
  ignition-gateway hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKey := args[0]

		if hashKeyArgon2id {
			hash, err := auth.HashKeyArgon2id(rawKey)
			if err != nil {
				return fmt.Errorf("hash key: %w", err)
			}
			fmt.Printf("key_hash: %q\n", hash)
			return nil
		}

		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		saltHex := hex.EncodeToString(salt)
		fmt.Printf("key_hash: %q\nsalt: %q\n", auth.HashKey(saltHex, rawKey), saltHex)
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyArgon2id, "argon2id", false, "produce an Argon2id PHC hash instead of salted SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
