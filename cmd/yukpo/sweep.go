package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/internal/log"
)

func sweepCmd() *cobra.Command {
	var (
		envFile string
		scores  bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep and exit",
		Long: `Run one lifecycle sweep: deactivate expired services, alert owners
whose services are about to expire and retry failed indexing. Use it from an
external scheduler instead of the built-in supervisor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runSweep(ctx, cmd, envFile, scores)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().BoolVar(&scores, "scores", false, "Also refresh reputation scores")

	return cmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, envFile string, scores bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	client, err := yukpo.New(
		yukpo.WithConfig(cfg),
		yukpo.WithLogger(logger),
		yukpo.WithoutSupervisor(),
	)
	if err != nil {
		return fmt.Errorf("create yukpo client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close yukpo client", slog.Any("error", err))
		}
	}()

	report, err := client.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	// Queued reindexing finishes before the client closes.
	client.Indexer.Wait()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "deactivated: %d\nalerted: %d\nreindexed: %d\nerrors: %d\n",
		report.Deactivated, report.Alerted, report.Reindexed, report.Errors)

	if scores {
		n, err := client.Scores.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("refresh scores: %w", err)
		}
		_, _ = fmt.Fprintf(out, "scores refreshed: %d\n", n)
	}
	return nil
}
