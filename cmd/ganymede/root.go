package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/config"
	"quantgate-hq/ganymede/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Populated by setupRuntime before any subcommand runs.
	runtimeConfig *config.Config
	logger        *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - trading strategy validation engine",
	Long: `Ganymede validates machine-generated trading strategy artifacts.

It combines a deterministic rule engine with a budget-bounded agent review
lane, producing canonical validation artifacts:
  - Indicator fidelity, trade coherence, metric consistency, and lineage checks
  - Cost-bounded agent review with a restricted tool surface
  - Policy-gated decision resolution across review lanes
  - Baselines and regression replay over past decisions`,
	Version:           Version,
	PersistentPreRunE: setupRuntime,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupRuntime loads the runtime configuration and builds the structured
// logger every subcommand shares. Logs go to stderr so command output on
// stdout stays machine-readable.
func setupRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig(cmd)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	base, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
		Writer: os.Stderr,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(base)

	runtimeConfig = cfg
	logger = logging.Component(base, "cli")
	return nil
}

// loadRuntimeConfig reads the configured file with environment overrides.
// A missing file at the default path is not an error; the built-in defaults
// apply. An explicitly requested file must exist.
func loadRuntimeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
		return config.NewDefault(), nil
	}
	return nil, cli.NewConfigError(cfgFile, err)
}
