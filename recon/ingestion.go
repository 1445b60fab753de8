package recon

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

const dateLayout = "2006-01-02"

// Ingestion normalizes both sides of a break and reports data-quality issues.
//
// Writes: break_id, break_type, status (INGESTED | VALIDATION_FAILED),
// normalized{system_a, system_b}, validation{is_valid, issues}.
type Ingestion struct{}

// Name implements dag.Task.
func (Ingestion) Name() string { return TaskBreakIngestion }

// Invoke implements dag.Task.
func (Ingestion) Invoke(ctx context.Context, item *profile.WorkItem, _ dag.Results) (dag.Result, error) {
	if item == nil || item.SystemA == nil || item.SystemB == nil {
		return nil, fmt.Errorf("work item has no sides to ingest")
	}
	a, b := normalizeSide(item.SystemA), normalizeSide(item.SystemB)

	var issues []string
	if a.Amount == 0 && b.Amount == 0 {
		issues = append(issues, "both sides report a zero amount")
	}
	for name, s := range map[string]profile.Side{"system_a": a, "system_b": b} {
		if s.Currency == "" {
			issues = append(issues, name+" has no currency")
		}
		if s.TradeDate != "" {
			if _, err := time.Parse(dateLayout, s.TradeDate); err != nil {
				issues = append(issues, fmt.Sprintf("%s trade_date %q is not YYYY-MM-DD", name, s.TradeDate))
			}
		}
	}
	slices.Sort(issues)

	status := "INGESTED"
	if len(issues) > 0 {
		status = "VALIDATION_FAILED"
	}
	return dag.Result{
		"break_id":   item.ID,
		"break_type": item.Category,
		"status":     status,
		"normalized": map[string]any{
			"system_a": sideMap(a),
			"system_b": sideMap(b),
		},
		"validation": map[string]any{
			"is_valid": len(issues) == 0,
			"issues":   issues,
		},
	}, nil
}

// normalizeSide returns a copy of s with trimmed, upper-cased identifiers.
func normalizeSide(s *profile.Side) profile.Side {
	out := *s
	out.Source = strings.ToUpper(strings.TrimSpace(s.Source))
	out.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	out.TradeDate = strings.TrimSpace(s.TradeDate)
	out.Reference = strings.TrimSpace(s.Reference)
	return out
}

func sideMap(s profile.Side) map[string]any {
	return map[string]any{
		"source":     s.Source,
		"amount":     s.Amount,
		"quantity":   s.Quantity,
		"price":      s.Price,
		"currency":   s.Currency,
		"trade_date": s.TradeDate,
		"reference":  s.Reference,
	}
}
