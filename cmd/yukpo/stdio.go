package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/internal/log"
	"github.com/yukpo/yukpo/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants search the Yukpo catalog. Logs go to stderr since
stdout carries the protocol. Configuration is loaded from environment
variables and .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	client, err := yukpo.New(yukpo.WithConfig(cfg), yukpo.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create yukpo client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close yukpo client", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(client.Search, client, version, logger,
		mcp.WithDefaultRadius(cfg.Matching().DefaultRadiusKM()),
	)
	return mcpServer.ServeStdio()
}
