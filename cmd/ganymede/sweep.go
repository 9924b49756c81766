package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/config"
	"quantgate-hq/ganymede/pkg/runs"
	"quantgate-hq/ganymede/pkg/runs/idemstore"
)

var sweepFlags struct {
	follow bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired idempotency records",
	Long: `Delete expired idempotency records from the configured backend.

By default one expiry pass runs and the command exits. With --follow the
configured cron schedule keeps sweeping until interrupted.

Examples:
  # One expiry pass
  ganymede sweep

  # Keep sweeping on the configured schedule
  ganymede sweep --follow`,
	RunE: sweepRecords,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepFlags.follow, "follow", false, "sweep on the configured cron schedule until interrupted")
}

func sweepRecords(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := openIdemBackend(runtimeConfig)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer backend.Close()

	if sweepFlags.follow {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		sweeper := runs.NewSweeper(backend, runtimeConfig.Idempotency.SweepSchedule, logger)
		if err := sweeper.Start(ctx); err != nil {
			return cli.NewCommandError("sweep", err)
		}
		<-ctx.Done()
		sweeper.Stop()
		return nil
	}

	removed, err := backend.DeleteExpired(ctx, time.Now())
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	fmt.Printf("Removed %d expired idempotency record(s)\n", removed)
	return nil
}

// openIdemBackend resolves the configured idempotency backend.
func openIdemBackend(cfg *config.Config) (idemstore.Backend, error) {
	switch cfg.Idempotency.Backend {
	case "memory":
		return idemstore.NewMemoryBackend(), nil
	case "sqlite":
		return idemstore.NewSQLiteBackend(cfg.Idempotency.Path)
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Idempotency.Backend)
	}
}
