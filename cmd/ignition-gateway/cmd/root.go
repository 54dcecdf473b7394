// Package cmd provides the CLI commands for the Ignition LLM gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ignition-gateway",
	Short: "Ignition LLM Gateway - auditable action layer for conversational agents",
	Long: `Ignition LLM Gateway mediates between a conversational LLM agent and an
Ignition gateway's configuration resources.

Every change the model proposes becomes a typed, validated action that is
authorized against the caller's API key permissions, gated by environment
policy, and recorded in the audit trail before anything touches the platform.

Quick start:
  1. Create a config file: ignition-gateway.yaml
  2. Run: ignition-gateway serve

Configuration:
  Config is loaded from ignition-gateway.yaml in the current directory,
  $HOME/.ignition-gateway/, or /etc/ignition-gateway/.

  Environment variables can override config values with the
  IGNITION_GATEWAY_ prefix.
  Example: IGNITION_GATEWAY_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the gateway server
  hash-key    Hash a raw API key for the seed key file
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ignition-gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
