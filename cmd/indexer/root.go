package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/medical-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/medical-rag-assistant/internal/config"
	"github.com/kirillkom/medical-rag-assistant/internal/observability/logging"
)

type commandContext struct {
	envFile   string
	namespace string
	logLevel  string
}

func (c *commandContext) loadConfig() (config.Config, error) {
	var paths []string
	if c.envFile != "" {
		paths = append(paths, c.envFile)
	}
	if err := config.LoadDotEnv(paths...); err != nil {
		return config.Config{}, err
	}
	cfg := config.Load()
	if c.namespace != "" {
		cfg.VectorNamespace = c.namespace
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.ServiceName+"-indexer", cfg.LogLevel, "text"))
	return cfg, nil
}

func openApp(ctx context.Context, cfg config.Config) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, bootstrap.Options{Role: bootstrap.RoleIndexer})
}

func newRootCommand() *cobra.Command {
	cmdCtx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "indexer",
		Short:         "Build and inspect the medical reference vector index",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cmdCtx.envFile, "env-file", "", "Path to a .env file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVarP(&cmdCtx.namespace, "namespace", "n", "", "Vector namespace (overrides VECTOR_NAMESPACE)")
	rootCmd.PersistentFlags().StringVar(&cmdCtx.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newBuildCommand(cmdCtx))
	rootCmd.AddCommand(newAppendCommand(cmdCtx))
	rootCmd.AddCommand(newSearchCommand(cmdCtx))

	return rootCmd
}

func documentsDir(flagValue string, cfg config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.DocumentsPath
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("documents directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("documents directory: %s is not a directory", path)
	}
	return nil
}
