// Package main provides the entry point for the directory CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/resource-directory/internal/infrastructure/config"
	"github.com/ersonp/resource-directory/internal/infrastructure/logging"
	"github.com/ersonp/resource-directory/internal/infrastructure/metrics"
)

var (
	version = "0.1.0-dev"

	globalVerbose         bool
	globalActor           string
	globalMetricsTextfile string
)

// appState is built once per invocation by the root command's pre-run hook.
type appState struct {
	cwd     string
	cfg     *config.Config
	cfgErr  error
	logger  *zap.Logger
	metrics *metrics.Recorder
}

var state = &appState{}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "directory",
		Short:             "Find and resolve duplicate records in a community resource directory",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalActor, "actor", "", "Acting user for mutating commands (env "+EnvActor+")")
	rootCmd.PersistentFlags().StringVar(&globalMetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the command")

	rootCmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newRecordsCmd(),
		newDetectCmd(),
		newMergeCmd(),
		newArchiveCmd(),
		newFlagCmd(),
		newHistoryCmd(),
	)

	return rootCmd
}

// setup loads the config and builds the logger and metrics recorder. A missing
// config is not fatal here so that init can run; withDeps reports it.
func setup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, cfgErr := config.Load(cwd)
	logCfg := config.Default().Logging
	if cfgErr == nil {
		logCfg = cfg.Logging
	}

	logger, err := logging.New(logCfg.Level, logCfg.Format, globalVerbose)
	if err != nil {
		return err
	}

	*state = appState{
		cwd:     cwd,
		cfg:     cfg,
		cfgErr:  cfgErr,
		logger:  logger,
		metrics: metrics.NewRecorder(),
	}
	logger.Debug("command starting", zap.String("command", cmd.CommandPath()), zap.String("cwd", cwd))
	return nil
}

func teardown() error {
	if state.logger != nil {
		defer func() { _ = state.logger.Sync() }()
	}

	path := metricsTextfile()
	if path == "" || state.metrics == nil {
		return nil
	}
	if err := state.metrics.WriteTextfile(path); err != nil {
		return err
	}
	state.logger.Debug("metrics written", zap.String("path", path))
	return nil
}

// metricsTextfile returns the flag value, falling back to the config.
func metricsTextfile() string {
	if globalMetricsTextfile != "" {
		return globalMetricsTextfile
	}
	if state.cfg != nil {
		return state.cfg.Metrics.Textfile
	}
	return ""
}
