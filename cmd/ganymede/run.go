package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quantgate-hq/ganymede/pkg/cli"
	"quantgate-hq/ganymede/pkg/engine"
	"quantgate-hq/ganymede/pkg/policy"
)

var runFlags struct {
	evidenceFile string
	policyFile   string
	format       string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate an evidence document against a policy",
	Long: `Run the deterministic validation checks over an evidence document.

The evidence document is a YAML (or JSON) file carrying the resolved
validation inputs: requested and rendered indicators, trades and execution
logs, reported and recomputed metrics, and dataset lineage. The command
prints the four check results, the block reasons, and the deterministic
decision.

Examples:
  # Evaluate evidence under a policy
  ganymede run --evidence evidence.yaml --policy policy.yaml

  # JSON output
  ganymede run --evidence evidence.yaml --policy policy.yaml --format json`,
	RunE: runEvaluation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.evidenceFile, "evidence", "e", "", "evidence document to evaluate (required)")
	runCmd.Flags().StringVarP(&runFlags.policyFile, "policy", "p", "", "policy document (required)")
	runCmd.Flags().StringVar(&runFlags.format, "format", "json", "output format: text, json")
	runCmd.MarkFlagRequired("evidence")
	runCmd.MarkFlagRequired("policy")
}

// evidenceDocument is the on-disk shape of a resolved evidence bundle.
type evidenceDocument struct {
	RequestedIndicators []string            `yaml:"requestedIndicators" json:"requestedIndicators"`
	RenderedIndicators  []string            `yaml:"renderedIndicators" json:"renderedIndicators"`
	Chart               *chartDocument      `yaml:"chart" json:"chart"`
	Trades              []tradeDocument     `yaml:"trades" json:"trades"`
	ExecutionLogs       []executionDocument `yaml:"executionLogs" json:"executionLogs"`
	ReportedMetrics     map[string]any      `yaml:"reportedMetrics" json:"reportedMetrics"`
	RecomputedMetrics   map[string]any      `yaml:"recomputedMetrics" json:"recomputedMetrics"`
	RequestedDatasets   []string            `yaml:"requestedDatasets" json:"requestedDatasets"`
	Lineage             []lineageDocument   `yaml:"lineage" json:"lineage"`
	HasLineage          bool                `yaml:"hasLineage" json:"hasLineage"`
}

type chartDocument struct {
	Indicators []string `yaml:"indicators" json:"indicators"`
	Panes      []struct {
		Name       string   `yaml:"name" json:"name"`
		Indicators []string `yaml:"indicators" json:"indicators"`
	} `yaml:"panes" json:"panes"`
}

type tradeDocument struct {
	TradeID  string  `yaml:"tradeId" json:"tradeId"`
	OrderID  string  `yaml:"orderId" json:"orderId"`
	Symbol   string  `yaml:"symbol" json:"symbol"`
	Quantity float64 `yaml:"quantity" json:"quantity"`
	Price    float64 `yaml:"price" json:"price"`
}

type executionDocument struct {
	OrderID string `yaml:"orderId" json:"orderId"`
	State   string `yaml:"state" json:"state"`
}

type lineageDocument struct {
	DatasetID string `yaml:"datasetId" json:"datasetId"`
	SourceRef string `yaml:"sourceRef" json:"sourceRef"`
}

// EvaluationOutput is the printed result of one evaluation.
type EvaluationOutput struct {
	Policy        string   `json:"policy"`
	Profile       string   `json:"profile"`
	Checks        any      `json:"checks"`
	BlockReasons  []string `json:"blockReasons"`
	FinalDecision string   `json:"finalDecision"`
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	policyData, err := os.ReadFile(runFlags.policyFile)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	pol, err := policy.ParseYAML(policyData)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	evidenceData, err := os.ReadFile(runFlags.evidenceFile)
	if err != nil {
		return fmt.Errorf("failed to read evidence file: %w", err)
	}
	var doc evidenceDocument
	if err := yaml.Unmarshal(evidenceData, &doc); err != nil {
		return fmt.Errorf("failed to parse evidence file: %w", err)
	}

	result := engine.Evaluate(buildEvidence(&doc), pol)
	logger.Debug("evidence evaluated",
		"evidence", runFlags.evidenceFile,
		"profile", string(pol.Profile),
		"final_decision", result.FinalDecision,
	)

	output := EvaluationOutput{
		Policy:        runFlags.policyFile,
		Profile:       string(pol.Profile),
		Checks:        result.Checks,
		BlockReasons:  result.BlockReasons,
		FinalDecision: result.FinalDecision,
	}

	if runFlags.format == "text" {
		fmt.Printf("Evidence:      %s\n", runFlags.evidenceFile)
		fmt.Printf("Profile:       %s\n", pol.Profile)
		fmt.Printf("Decision:      %s\n", result.FinalDecision)
		for _, reason := range result.BlockReasons {
			fmt.Printf("  blocked by:  %s\n", reason)
		}
		return nil
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, output)
}

// buildEvidence converts the on-disk document into engine evidence.
func buildEvidence(doc *evidenceDocument) *engine.Evidence {
	ev := &engine.Evidence{
		RequestedIndicators: doc.RequestedIndicators,
		RenderedIndicators:  doc.RenderedIndicators,
		ReportedMetrics:     doc.ReportedMetrics,
		RecomputedMetrics:   doc.RecomputedMetrics,
		RequestedDatasets:   doc.RequestedDatasets,
	}

	if doc.Chart != nil {
		chart := &engine.ChartPayload{Indicators: doc.Chart.Indicators}
		for _, pane := range doc.Chart.Panes {
			chart.Panes = append(chart.Panes, engine.ChartPane{
				Name:       pane.Name,
				Indicators: pane.Indicators,
			})
		}
		ev.ChartPayload = chart
	}

	for _, t := range doc.Trades {
		ev.Trades = append(ev.Trades, engine.Trade{
			TradeID:  t.TradeID,
			OrderID:  t.OrderID,
			Symbol:   t.Symbol,
			Quantity: t.Quantity,
			Price:    t.Price,
		})
	}
	for _, e := range doc.ExecutionLogs {
		ev.ExecutionLogs = append(ev.ExecutionLogs, engine.ExecutionEvent{
			OrderID: e.OrderID,
			State:   e.State,
		})
	}

	if doc.HasLineage || len(doc.Lineage) > 0 {
		lineage := &engine.LineagePayload{}
		for _, entry := range doc.Lineage {
			lineage.Datasets = append(lineage.Datasets, engine.LineageEntry{
				DatasetID: entry.DatasetID,
				SourceRef: entry.SourceRef,
			})
		}
		ev.Lineage = lineage
	}
	return ev
}
