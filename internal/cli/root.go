// Package cli implements the sorobai command line: the HTTP API, the MCP
// server, documentation ingestion and offline contract validation.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/app"
	"github.com/upb/sorobai/backend/config"
	"github.com/upb/sorobai/backend/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "sorobai",
	Short: "Retrieval-augmented assistant for Soroban smart contracts",
	Long: `SorobAI answers questions about Soroban smart contracts from an indexed
documentation corpus and checks generated contracts for known antipatterns.

Configuration is read from the environment (and .env when present).

Quick Start:
  sorobai reingest             Rebuild the fragment store from docs/
  sorobai serve                Start the HTTP API
  sorobai ask "token contract" Ask a question from the terminal
  sorobai validate lib.rs      Check a contract for antipatterns
  sorobai mcp                  Serve MCP tools over stdio`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and builds the stderr logger
func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Version == "dev" {
		cfg.Version = buildVersion
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// setup loads the configuration and wires every dependency. Callers must
// Close the result.
func setup(ctx context.Context) (*app.Dependencies, error) {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}

// closeDeps releases dependencies within the configured shutdown timeout
func closeDeps(deps *app.Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := deps.Close(ctx); err != nil {
		deps.Logger.Warn("error releasing dependencies", zap.Error(err))
	}
}
