package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/infrastructure/api"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server with the lifecycle supervisor.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.yukpo)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/yukpo.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated list of valid API keys
  CORS_ALLOWED_ORIGINS         Comma-separated allowed origins (default: *)

  EMBEDDING_API_URL            Embedding service base URL
  EMBEDDING_API_KEY            Embedding service API key
  LLM_ENDPOINT_BASE_URL        OpenAI-compatible model base URL
  LLM_ENDPOINT_MODEL           Model identifier
  LLM_ENDPOINT_API_KEY         Model API key

  MATCHING_*                   Search tunables (TOP_K, RESULT_LIMIT, DEFAULT_RADIUS_KM, ...)
  FINAL_SCORE_THRESHOLD        Minimum fused score of a result (default: 0.40)
  REDIS_URL                    Share reputation scores through Redis
  LIFECYCLE_SWEEP_SCHEDULE     Cron schedule of the deactivation sweep (default: @every 1h)
  ALERT_WEBHOOK_URL            Owner alert webhook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(ctx context.Context, envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	logger.Info("starting yukpo", slog.String("version", version), slog.String("addr", cfg.Addr()))

	client, err := yukpo.New(yukpo.WithConfig(cfg), yukpo.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create yukpo client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close yukpo client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client, api.WithVersion(version))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errs
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
