package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/policy"
)

var validateFlags struct {
	file   string
	dir    string
	format string
	watch  bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate review policy files",
	Long: `Validate review policy files for syntax and invariant violations.

The validate command parses policy documents and checks them against the
policy contract:
  - YAML/JSON syntax and unknown-field rejection
  - Required gate fields
  - Known profile values (FAST, STANDARD, EXPERT)
  - Constant-true invariants
  - Positive metric drift tolerance overrides

Examples:
  # Validate a single file
  ganymede validate --file policy.yaml

  # Validate a directory
  ganymede validate --dir policies/

  # JSON output for CI/CD
  ganymede validate --file policy.yaml --format json

  # Revalidate on every save until interrupted
  ganymede validate --file policy.yaml --watch`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "policy file to validate")
	validateCmd.Flags().StringVarP(&validateFlags.dir, "dir", "d", "", "directory of policy files")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	validateCmd.Flags().BoolVar(&validateFlags.watch, "watch", false, "revalidate the policy file on change until interrupted")
}

// PolicyResult is the validation result for a single policy file.
type PolicyResult struct {
	File         string  `json:"file"`
	Valid        bool    `json:"valid"`
	Profile      string  `json:"profile,omitempty"`
	TolerancePct float64 `json:"tolerancePct,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	if validateFlags.file == "" && validateFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if validateFlags.file != "" {
		files = append(files, validateFlags.file)
	}
	if validateFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
			matches, err := filepath.Glob(filepath.Join(validateFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no policy files found")
	}

	results := make([]PolicyResult, 0, len(files))
	failed := 0
	for _, file := range files {
		result := validatePolicyFile(file)
		if !result.Valid {
			failed++
		}
		results = append(results, result)
	}

	if validateFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, result := range results {
			if result.Valid {
				fmt.Printf("✓ %s: valid (profile %s, drift tolerance %.2f%%)\n",
					result.File, result.Profile, result.TolerancePct)
			} else {
				fmt.Printf("✗ %s: %s\n", result.File, result.Error)
			}
		}
		fmt.Printf("\nSummary: %d file(s), %d invalid\n", len(results), failed)
	}

	if failed > 0 {
		return cli.NewCommandError("validate", fmt.Errorf("%d policy file(s) invalid", failed))
	}

	if validateFlags.watch {
		if validateFlags.file == "" {
			return fmt.Errorf("--watch requires --file")
		}
		return watchPolicyFile(cmd, validateFlags.file)
	}
	return nil
}

// watchPolicyFile revalidates the policy document whenever it changes,
// keeping the last good version and logging each reload outcome.
func watchPolicyFile(cmd *cobra.Command, path string) error {
	src, err := policy.NewFileSource(policy.FileSourceConfig{Path: path}, logger)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return src.Watch(ctx)
}

func validatePolicyFile(path string) PolicyResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyResult{File: path, Error: err.Error()}
	}

	pol, err := policy.ParseYAML(data)
	if err != nil {
		return PolicyResult{File: path, Error: err.Error()}
	}
	return PolicyResult{
		File:         path,
		Valid:        true,
		Profile:      string(pol.Profile),
		TolerancePct: pol.ResolvedDriftTolerancePct(),
	}
}
