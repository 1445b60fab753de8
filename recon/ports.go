package recon

import "github.com/kbukum/reconflow/dag"

// Task names.
const (
	TaskBreakIngestion      = "BREAK_INGESTION"
	TaskDataEnrichment      = "DATA_ENRICHMENT"
	TaskMatchingCorrelation = "MATCHING_CORRELATION"
	TaskRulesTolerance      = "RULES_TOLERANCE"
	TaskPatternIntelligence = "PATTERN_INTELLIGENCE"
	TaskDecisioning         = "DECISIONING"
	TaskWorkflowFeedback    = "WORKFLOW_FEEDBACK"
)

// TaskNames lists every task in pipeline order.
var TaskNames = []string{
	TaskBreakIngestion,
	TaskDataEnrichment,
	TaskMatchingCorrelation,
	TaskRulesTolerance,
	TaskPatternIntelligence,
	TaskDecisioning,
	TaskWorkflowFeedback,
}

// Typed views of the result fields other tasks and conditions consume.
var (
	PortWithinTolerance   = dag.Port[bool]{Task: TaskRulesTolerance, Field: "within_tolerance"}
	PortWithinRounding    = dag.Port[bool]{Task: TaskRulesTolerance, Field: "within_rounding_tolerance"}
	PortDifference        = dag.Port[float64]{Task: TaskRulesTolerance, Field: "difference"}
	PortDifferenceBps     = dag.Port[float64]{Task: TaskRulesTolerance, Field: "difference_bps"}
	PortCurrencyMismatch  = dag.Port[bool]{Task: TaskRulesTolerance, Field: "currency_mismatch"}
	PortQuantityMismatch  = dag.Port[bool]{Task: TaskRulesTolerance, Field: "quantity_mismatch"}
	PortTradeDateMismatch = dag.Port[bool]{Task: TaskRulesTolerance, Field: "trade_date_mismatch"}
	PortBestScore         = dag.Port[float64]{Task: TaskMatchingCorrelation, Field: "best_score"}
	PortBestMatchType     = dag.Port[string]{Task: TaskMatchingCorrelation, Field: "best_match_type"}
	PortRootCause         = dag.Port[string]{Task: TaskPatternIntelligence, Field: "root_cause"}
	PortPatternConfidence = dag.Port[float64]{Task: TaskPatternIntelligence, Field: "confidence"}
	PortDecisionAction    = dag.Port[string]{Task: TaskDecisioning, Field: "decision.action"}
	PortRiskScore         = dag.Port[float64]{Task: TaskDecisioning, Field: "risk_score"}
	PortToleranceOverride = dag.Port[float64]{Task: TaskDataEnrichment, Field: "enriched_data.instrument.tolerance_bps"}
)
