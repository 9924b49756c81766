package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/storage"
)

var showFlags struct {
	tenant string
	user   string
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a stored run artifact",
	Long: `Print the canonical artifact of a stored validation run.

The artifact is read from the configured storage backend with the current
review state overlaid, then checked against the validation-run.v1 wire
contract before printing. Reads are scoped: the tenant and user must match
the run's owner.

Examples:
  ganymede show --tenant acme --user u-1 3e8f2c51-...`,
	Args: cobra.ExactArgs(1),
	RunE: showRun,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showFlags.tenant, "tenant", "", "tenant the run belongs to (required)")
	showCmd.Flags().StringVar(&showFlags.user, "user", "", "owning user (required)")
	showCmd.MarkFlagRequired("tenant")
	showCmd.MarkFlagRequired("user")
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.New(runtimeConfig.Runtime.Profile, storage.Options{
		Backend:     runtimeConfig.Storage.Backend,
		SQLitePath:  runtimeConfig.Storage.SQLite.Path,
		WALMode:     runtimeConfig.Storage.SQLite.WALMode,
		BusyTimeout: runtimeConfig.Storage.SQLite.BusyTimeout,
	}, logger)
	if err != nil {
		return cli.NewCommandError("show", err)
	}
	defer store.Close()

	scope := storage.Scope{TenantID: showFlags.tenant, UserID: showFlags.user}
	record, err := store.GetRun(ctx, scope, args[0])
	if err != nil {
		return cli.NewCommandError("show", err)
	}

	data, err := overlayReview(record)
	if err != nil {
		return cli.NewCommandError("show", err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		return cli.NewCommandError("show", fmt.Errorf("stored artifact failed schema validation: %w", err))
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return cli.NewCommandError("show", err)
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, doc)
}

// overlayReview applies the authoritative review state onto the stored
// artifact, mirroring the orchestrator read path.
func overlayReview(record *storage.RunRecord) ([]byte, error) {
	var art artifact.RunArtifact
	if err := json.Unmarshal(record.Meta.Artifact, &art); err != nil {
		return nil, fmt.Errorf("failed to decode stored artifact: %w", err)
	}
	art.AgentReview = record.Review.AgentReview
	art.TraderReview = record.Review.TraderReview
	art.FinalDecision = record.Review.FinalDecision
	return json.Marshal(&art)
}
