package cli

import (
	"context"
	"fmt"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/scheduler"
	"github.com/mfarzz/jobai/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing match analysis and quests.

Available endpoints:
- POST /api/jobs/{id}/analyze: Analyze the caller's match for a job
- GET  /api/jobs/{id}/analyze: Fetch the stored analysis
- GET  /api/jobs/{id}/quests: List quests with the caller's submissions
- POST /api/jobs/{id}/quests: Generate new quests
- POST /api/quests/{id}/submit: Answer a quest
- GET  /health: Health check endpoint
- GET  /stats: Server and storage statistics

API endpoints require the user header (default X-User-ID). When the
scheduler is enabled, stale analyses are recomputed in the background.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().Bool("scheduler", false, "Run the stale analysis scheduler (overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("scheduler") {
		cfg.Scheduler.Enabled, _ = flags.GetBool("scheduler")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)
	applyServeFlags(cmd, cfg)

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := om.Shutdown(context.Background()); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	a, err := newApp(ctx, cfg, om, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler, a.analysis, logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	stopPrompts := startPromptWatcher(cfg, logger)
	defer stopPrompts()

	srv := server.NewServer(cfg, server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		APIKeys:        cfg.Server.APIKeys,
		UserHeader:     cfg.Server.UserHeader,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		RateLimit:      &cfg.Server.RateLimit,
	}, server.Dependencies{
		Analysis:      a.analysis,
		Quests:        a.quests,
		Backend:       a.store,
		Models:        a.models,
		Observability: om,
	}, logger)

	stopKeys, err := startKeyRotation(cfg, srv, logger)
	if err != nil {
		return err
	}
	defer stopKeys()

	return srv.Start(ctx)
}

// startPromptWatcher hot-reloads system prompt files; failures only disable
// reloading
func startPromptWatcher(cfg *config.Config, logger *errors.Logger) func() {
	watcher, err := config.NewPromptWatcher(cfg, 0, logger)
	if err != nil {
		logger.LogError(err, "Prompt hot reload disabled")
		return func() {}
	}
	if !watcher.HasFiles() {
		return func() {}
	}
	if err := watcher.Start(); err != nil {
		logger.LogError(err, "Prompt hot reload disabled")
		return func() {}
	}
	return func() { _ = watcher.Stop() }
}

// startKeyRotation polls Vault for new API keys when both a key path and a
// poll interval are configured
func startKeyRotation(cfg *config.Config, srv *server.Server, logger *errors.Logger) (func(), error) {
	if !cfg.Vault.Enabled || cfg.Vault.Secrets.APIKeys == "" || cfg.Vault.PollInterval <= 0 {
		return func() {}, nil
	}

	client, err := config.NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault client: %w", err)
	}

	watcher := server.NewVaultWatcher(client, cfg.Vault.Secrets.APIKeys, cfg.Vault.PollInterval, srv, logger)
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return func() { _ = watcher.Stop() }, nil
}
