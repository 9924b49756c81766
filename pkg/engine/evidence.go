package engine

// Evidence is the resolved input to one deterministic evaluation. It is
// supplied by an external evidence source; the engine only consumes this
// shape and never fetches anything itself.
type Evidence struct {
	// Indicator fidelity inputs.
	RequestedIndicators []string
	RenderedIndicators  []string
	ChartPayload        *ChartPayload

	// Trade coherence inputs.
	Trades        []Trade
	ExecutionLogs []ExecutionEvent

	// Metric consistency inputs. Values are declared as any because
	// reported metrics arrive from an untrusted producer; non-numeric
	// values are a structural mismatch, not a parse error.
	ReportedMetrics   map[string]any
	RecomputedMetrics map[string]any

	// Lineage completeness inputs.
	RequestedDatasets []string
	Lineage           *LineagePayload
}

// ChartPayload is an optional rendered chart. Indicators may appear in the
// flat list or nested in per-pane lists; the rendered set is the union.
type ChartPayload struct {
	Indicators []string
	Panes      []ChartPane
}

// ChartPane is one pane of a chart payload.
type ChartPane struct {
	Name       string
	Indicators []string
}

// Trade is one executed trade from the backtest, keyed to its order.
type Trade struct {
	TradeID  string
	OrderID  string
	Symbol   string
	Quantity float64
	Price    float64
}

// ExecutionEvent is one order-lifecycle event from the execution logs, in
// emission order.
type ExecutionEvent struct {
	OrderID string
	State   string
}

// LineagePayload maps dataset ids to their source references.
type LineagePayload struct {
	Datasets []LineageEntry
}

// LineageEntry links one dataset to the source it was derived from.
type LineageEntry struct {
	DatasetID string
	SourceRef string
}
