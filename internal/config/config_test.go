package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	c := &Config{
		Provider: ProviderConfig{Model: "gpt-4o-mini"},
	}
	c.SetDefaults()
	return c
}

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()

	if c.Environment != "development" {
		t.Errorf("Environment = %q, want development", c.Environment)
	}
	if c.Server.HTTPAddr != "127.0.0.1:8090" {
		t.Errorf("HTTPAddr = %q", c.Server.HTTPAddr)
	}
	if c.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q", c.Server.LogLevel)
	}
	if c.Provider.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", c.Provider.MaxTokens)
	}
	if c.Audit.Output != "stdout" || c.Audit.ChannelSize != 1024 || c.Audit.BatchSize != 32 {
		t.Errorf("audit defaults = %+v", c.Audit)
	}
	if c.Conversation.MaxTurns != 10 || c.Conversation.Timeout != "30m" {
		t.Errorf("conversation defaults = %+v", c.Conversation)
	}
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	c := &Config{
		Environment: "production",
		Server:      ServerConfig{HTTPAddr: "0.0.0.0:9000"},
		Audit:       AuditConfig{Output: "sqlite:///var/lib/gw/audit.db"},
	}
	c.SetDefaults()

	if c.Environment != "production" {
		t.Errorf("Environment = %q", c.Environment)
	}
	if c.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr = %q", c.Server.HTTPAddr)
	}
	if c.Audit.Output != "sqlite:///var/lib/gw/audit.db" {
		t.Errorf("Output = %q", c.Audit.Output)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "not-an-addr" },
			wantErr: "httpaddr",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.Provider.Model = "" },
			wantErr: "model",
		},
		{
			name:    "bad provider url",
			mutate:  func(c *Config) { c.Provider.BaseURL = "::not-a-url" },
			wantErr: "baseurl",
		},
		{
			name:    "bad rule effect",
			mutate:  func(c *Config) { c.Rules = []RuleConfig{{Name: "r1", Expression: "true", Effect: "block"}} },
			wantErr: "effect",
		},
		{
			name: "duplicate rule names",
			mutate: func(c *Config) {
				c.Rules = []RuleConfig{
					{Name: "r1", Expression: "true", Effect: "deny"},
					{Name: "r1", Expression: "false", Effect: "allow"},
				}
			},
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAuditOutput(t *testing.T) {
	tests := []struct {
		output string
		ok     bool
	}{
		{output: "stdout", ok: true},
		{output: "file:///var/log/gw/audit.jsonl", ok: true},
		{output: "sqlite:///var/lib/gw/audit.db", ok: true},
		{output: "file://relative/path", ok: false},
		{output: "sqlite://", ok: false},
		{output: "stderr", ok: false},
		{output: "syslog://localhost", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			c := validConfig()
			c.Audit.Output = tt.output
			err := c.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.output, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Validate(%q) = nil, want error", tt.output)
			}
		})
	}
}
