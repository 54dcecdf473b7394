// Package config provides configuration types and loading for the gateway.
//
// Configuration is file-based (ignition-gateway.yaml) with environment
// variable overrides. Secrets such as the provider API key should come from
// the environment, not the file.
package config

// Config is the top-level gateway configuration.
type Config struct {
	// Environment selects the enforcement mode.
	// Valid values: "development", "test", "production".
	// Development relaxes audit and confirmation requirements; production
	// additionally restricts destructive actions to delete-permission holders.
	Environment string `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development test production"`

	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Provider configures the language-model backend.
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`

	// Audit configures where and how audit entries are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures API key seeding.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Conversation configures the conversational session loop.
	Conversation ConversationConfig `yaml:"conversation" mapstructure:"conversation"`

	// Rules defines optional policy extension rules, evaluated in order.
	Rules []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// ServerConfig configures the HTTP server.
// TLS is out of scope; terminate it at a reverse proxy.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8090").
	// Defaults to "127.0.0.1:8090" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	// Defaults to "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty"`
}

// ProviderConfig configures the chat completion backend. Any server speaking
// the OpenAI chat completions wire format works (hosted or local).
type ProviderConfig struct {
	// APIKey authenticates against the backend. Prefer setting it via the
	// IGNITION_GATEWAY_PROVIDER_API_KEY environment variable.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the backend endpoint (empty = api.openai.com).
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Model is the model name sent with each request.
	Model string `yaml:"model" mapstructure:"model" validate:"required"`

	// MaxTokens caps each completion. Defaults to 4096.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" validate:"omitempty,min=1"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Output specifies where audit entries are written.
	// Valid values: "stdout", "file://<absolute-path>" for JSON lines, or
	// "sqlite://<absolute-path>" for a queryable database.
	// Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the queue capacity between recorders and the writer.
	// Defaults to 1024.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is how many entries are written per sink append.
	// Defaults to 32.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval bounds how long a queued entry waits (e.g., "2s").
	// Defaults to "2s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long recording blocks on a full queue before
	// dropping (e.g., "50ms"). Defaults to "50ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`
}

// AuthConfig configures API key management.
type AuthConfig struct {
	// SeedKeysFile is an optional YAML file of pre-provisioned API keys,
	// loaded at startup. Keys created at runtime live alongside them.
	SeedKeysFile string `yaml:"seed_keys_file" mapstructure:"seed_keys_file"`
}

// ConversationConfig configures conversational sessions.
type ConversationConfig struct {
	// MaxTurns bounds provider round-trips per user message. Defaults to 10.
	MaxTurns int `yaml:"max_turns" mapstructure:"max_turns" validate:"omitempty,min=1"`

	// WorkerPoolSize bounds concurrently running turns. Defaults to 32.
	WorkerPoolSize int `yaml:"worker_pool_size" mapstructure:"worker_pool_size" validate:"omitempty,min=1"`

	// Timeout is the inactivity timeout after which a conversation expires
	// (e.g., "30m"). Defaults to "30m".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`

	// SystemPrompt overrides the built-in system prompt when set.
	SystemPrompt string `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// RuleConfig defines one policy extension rule.
type RuleConfig struct {
	// Name is the unique identifier for this rule.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Expression is a CEL expression over the action's shape (resource_type,
	// action_type, resource_path, user_id, dry_run, force, destructive,
	// recursive). When it evaluates true, the rule's effect applies.
	Expression string `yaml:"expression" mapstructure:"expression" validate:"required"`

	// Effect is what the rule advises when the expression matches.
	// Valid values: "allow", "deny", "require_confirmation".
	Effect string `yaml:"effect" mapstructure:"effect" validate:"required,oneof=allow deny require_confirmation"`

	// Reason is an optional human-readable explanation attached to decisions.
	Reason string `yaml:"reason" mapstructure:"reason"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}

	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8090"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = 4096
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1024
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 32
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "2s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "50ms"
	}

	if c.Conversation.MaxTurns == 0 {
		c.Conversation.MaxTurns = 10
	}
	if c.Conversation.WorkerPoolSize == 0 {
		c.Conversation.WorkerPoolSize = 32
	}
	if c.Conversation.Timeout == "" {
		c.Conversation.Timeout = "30m"
	}
}
