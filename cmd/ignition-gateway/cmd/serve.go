package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/inbound/httpapi"
	celrules "github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/outbound/cel"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/outbound/memory"
	openaiprovider "github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/outbound/openai"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/adapter/outbound/sqlite"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/config"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the Ignition LLM gateway server.

The server exposes the action endpoint, conversational endpoints with
server-sent event streaming, and the admin key management API. It requires a
configured model provider and at least one API key (seeded from the config
file, or auto-generated in development mode).

Examples:
  # Start with config file settings
  ignition-gateway serve

  # Start with a specific config file
  ignition-gateway --config /path/to/config.yaml serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C hard-kills.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("ignition-gateway stopped")
	return nil
}

// run wires all components together and serves until the context cancels.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	mode, err := policy.ParseMode(cfg.Environment)
	if err != nil {
		return err
	}
	if mode == policy.ModeDevelopment {
		logger.Warn("development mode: confirmation gating relaxed, do not use in production")
	}

	// Audit pipeline.
	sink, err := createAuditSink(cfg)
	if err != nil {
		return err
	}
	auditSvc := service.NewAuditService(sink, logger,
		service.WithAuditChannelSize(cfg.Audit.ChannelSize),
		service.WithAuditBatchSize(cfg.Audit.BatchSize),
		service.WithAuditFlushInterval(parseDuration(cfg.Audit.FlushInterval, 2*time.Second)),
		service.WithAuditSendTimeout(parseDuration(cfg.Audit.SendTimeout, 50*time.Millisecond)),
	)
	auditSvc.Start()

	// Key management.
	keyStore := memory.NewKeyStore()
	keyManager := auth.NewKeyManager(keyStore, logger)
	if err := seedKeys(ctx, cfg, mode, keyStore, keyManager, logger); err != nil {
		return err
	}

	// Policy engine with CEL extension rules.
	rules, err := buildRules(cfg)
	if err != nil {
		return err
	}
	policySvc := service.NewPolicyService(mode, auditSvc, logger, service.WithRules(rules))

	// Executor with a handler per resource type.
	executor := service.NewExecutorService(auditSvc, logger)
	for _, rt := range action.ResourceTypes() {
		executor.Register(memory.NewResourceStore(rt))
	}

	// Conversation loop.
	provider := openaiprovider.NewProvider(openaiprovider.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
	}, logger)
	convSvc := service.NewConversationService(
		memory.NewConversationStore(), provider, policySvc, executor, auditSvc, logger,
		service.WithMaxTurns(cfg.Conversation.MaxTurns),
		service.WithMaxTokens(cfg.Provider.MaxTokens),
		service.WithWorkerPoolSize(cfg.Conversation.WorkerPoolSize),
		service.WithSystemPrompt(cfg.Conversation.SystemPrompt),
	)

	// Expired conversation reaper.
	convTimeout := parseDuration(cfg.Conversation.Timeout, 30*time.Minute)
	go func() {
		ticker := time.NewTicker(convTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				convSvc.ReapExpired(ctx, convTimeout)
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP surface.
	handler := httpapi.NewHandler(httpapi.HandlerSpec{
		Keys:          keyManager,
		Policy:        policySvc,
		Executor:      executor,
		Conversations: convSvc,
		Recorder:      auditSvc,
		Metrics:       httpapi.NewMetrics(),
		Logger:        logger,
		Version:       Version,
	})
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	auditSvc.Record(audit.NewEntry(audit.EntrySpec{
		Category:  audit.CategorySystem,
		EventType: audit.EventGatewayStarted,
		Details:   map[string]interface{}{"addr": cfg.Server.HTTPAddr, "environment": mode.String()},
	}))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.HTTPAddr, "environment", mode.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown: stop the listener, drain turns, flush the audit log.
	shutdownTimeout := parseDuration(cfg.Server.ShutdownTimeout, 10*time.Second)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down", "timeout", shutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := convSvc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("conversation drain incomplete", "error", err)
	}

	auditSvc.Record(audit.NewEntry(audit.EntrySpec{
		Category:  audit.CategorySystem,
		EventType: audit.EventGatewayStopped,
	}))
	if err := auditSvc.Stop(shutdownCtx); err != nil {
		logger.Error("audit service stop failed", "error", err)
	}
	return nil
}

// createAuditSink builds the sink the audit output setting names.
func createAuditSink(cfg *config.Config) (audit.Sink, error) {
	output := cfg.Audit.Output
	switch {
	case output == "stdout":
		return memory.NewAuditSinkWithWriter(os.Stdout), nil
	case strings.HasPrefix(output, "file://"):
		path := strings.TrimPrefix(output, "file://")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		return memory.NewAuditSinkWithWriter(f), nil
	case strings.HasPrefix(output, "sqlite://"):
		return sqlite.NewAuditSink(strings.TrimPrefix(output, "sqlite://"))
	default:
		return nil, fmt.Errorf("invalid audit output: %s", output)
	}
}

// seedKeys loads pre-provisioned keys. In development mode with no seed
// file, a throwaway admin key is generated and printed once.
func seedKeys(ctx context.Context, cfg *config.Config, mode policy.Mode, store *memory.KeyStore, manager *auth.KeyManager, logger *slog.Logger) error {
	if cfg.Auth.SeedKeysFile != "" {
		keys, err := config.LoadSeedKeys(cfg.Auth.SeedKeysFile)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := store.Put(ctx, key); err != nil {
				return fmt.Errorf("seed key %s: %w", key.ID, err)
			}
		}
		logger.Info("seeded API keys", "count", len(keys), "file", cfg.Auth.SeedKeysFile)
		return nil
	}

	if mode != policy.ModeDevelopment {
		return fmt.Errorf("auth.seed_keys_file is required in %s mode", mode)
	}

	key, rawKey, err := manager.CreateKey(ctx, auth.CreateKeySpec{
		Name:        "dev-admin",
		Permissions: auth.NewPermissionSet(auth.PermissionAdmin),
	})
	if err != nil {
		return fmt.Errorf("create dev key: %w", err)
	}
	// Printed to stderr once; never stored or logged elsewhere.
	fmt.Fprintf(os.Stderr, "development admin key (id %s): %s\n", key.ID, rawKey)
	return nil
}

// buildRules compiles the configured CEL extension rules.
func buildRules(cfg *config.Config) ([]policy.Rule, error) {
	if len(cfg.Rules) == 0 {
		return nil, nil
	}
	evaluator, err := celrules.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("create rule evaluator: %w", err)
	}
	rules := make([]policy.Rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		rule, err := celrules.NewRule(evaluator, celrules.RuleSpec{
			Name:       rc.Name,
			Expression: rc.Expression,
			Effect:     policy.Effect(rc.Effect),
			Reason:     rc.Reason,
		})
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// parseDuration parses a config duration, falling back on invalid input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
