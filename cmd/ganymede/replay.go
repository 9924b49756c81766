package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/runs"
)

var replayFlags struct {
	baselineFile  string
	candidateFile string
	format        string
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Compare two run artifacts",
	Long: `Compare a candidate run artifact against a baseline artifact.

Both files must be schema-valid validation-run.v1 documents. The outcome
classification matches the regression replay workflow: unresolved decisions
are unknown, matching decisions pass, a conditional_pass candidate degrades
to conditional_pass, anything else is a regression fail.

Examples:
  ganymede replay --baseline base.json --candidate cand.json`,
	RunE: replayArtifacts,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayFlags.baselineFile, "baseline", "b", "", "baseline artifact file (required)")
	replayCmd.Flags().StringVar(&replayFlags.candidateFile, "candidate", "", "candidate artifact file (required)")
	replayCmd.Flags().StringVar(&replayFlags.format, "format", "text", "output format: text, json")
	replayCmd.MarkFlagRequired("baseline")
	replayCmd.MarkFlagRequired("candidate")
}

// ReplayOutput is the printed result of one artifact comparison.
type ReplayOutput struct {
	BaselineRunID     string `json:"baselineRunId"`
	BaselineDecision  string `json:"baselineDecision"`
	CandidateRunID    string `json:"candidateRunId"`
	CandidateDecision string `json:"candidateDecision"`
	Outcome           string `json:"outcome"`
}

func replayArtifacts(cmd *cobra.Command, args []string) error {
	baseline, err := loadArtifact(replayFlags.baselineFile)
	if err != nil {
		return cli.NewCommandError("replay", err)
	}
	candidate, err := loadArtifact(replayFlags.candidateFile)
	if err != nil {
		return cli.NewCommandError("replay", err)
	}

	output := ReplayOutput{
		BaselineRunID:     baseline.RunID,
		BaselineDecision:  baseline.FinalDecision,
		CandidateRunID:    candidate.RunID,
		CandidateDecision: candidate.FinalDecision,
		Outcome:           runs.ClassifyReplay(baseline.FinalDecision, candidate.FinalDecision),
	}

	if replayFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, output)
	}
	fmt.Printf("Baseline:   %s (%s)\n", output.BaselineRunID, output.BaselineDecision)
	fmt.Printf("Candidate:  %s (%s)\n", output.CandidateRunID, output.CandidateDecision)
	fmt.Printf("Outcome:    %s\n", output.Outcome)
	return nil
}

// loadArtifact reads and schema-validates one run artifact file.
func loadArtifact(path string) (*artifact.RunArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact file %q: %w", path, err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		return nil, fmt.Errorf("artifact %q failed schema validation: %w", path, err)
	}
	var art artifact.RunArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %q: %w", path, err)
	}
	return &art, nil
}
