package recon

import (
	"context"
	"fmt"
	"math"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Root causes inferred by Pattern.
const (
	CauseRounding     = "rounding_difference"
	CauseFXConversion = "fx_conversion"
	CauseTimingLag    = "timing_lag"
	CausePartialFill  = "partial_fill"
	CauseFeeMismatch  = "fee_mismatch"
	CauseDataEntry    = "data_entry_error"
	CauseUnexplained  = "unexplained"
)

// feeCeilingFraction is the largest relative difference attributed to fees.
const feeCeilingFraction = 0.005

type hypothesis struct {
	cause      string
	confidence float64
	fix        string
}

// Pattern infers the most probable root cause from the tolerance checks and
// match candidates already produced upstream. Missing upstream results lower
// confidence instead of failing.
//
// Writes: root_cause, confidence, patterns [{root_cause, confidence}],
// suggested_fix, status.
type Pattern struct{}

// Name implements dag.Task.
func (Pattern) Name() string { return TaskPatternIntelligence }

// Invoke implements dag.Task.
func (Pattern) Invoke(ctx context.Context, item *profile.WorkItem, results dag.Results) (dag.Result, error) {
	a, b := normalizeSide(item.SystemA), normalizeSide(item.SystemB)
	diff, haveRules := dag.Read(results, PortDifference)
	rounding, _ := dag.Read(results, PortWithinRounding)
	ccy, _ := dag.Read(results, PortCurrencyMismatch)
	dates, _ := dag.Read(results, PortTradeDateMismatch)
	qty, _ := dag.Read(results, PortQuantityMismatch)
	matchType, _ := dag.Read(results, PortBestMatchType)

	var hs []hypothesis
	if haveRules && rounding {
		hs = append(hs, hypothesis{CauseRounding, 0.97, "book the residual to the rounding account"})
	}
	if ccy {
		hs = append(hs, hypothesis{CauseFXConversion, 0.88, fmt.Sprintf("restate %s side at the trade-date %s/%s rate", b.Source, a.Currency, b.Currency)})
	}
	if matchType == MatchPartialFill || (qty && b.Quantity > 0 && b.Quantity < a.Quantity) {
		hs = append(hs, hypothesis{CausePartialFill, 0.9, "wait for the remaining fills before re-matching"})
	}
	if dates {
		hs = append(hs, hypothesis{CauseTimingLag, 0.85, "re-run after the settlement cycle closes"})
	}
	base := math.Max(math.Abs(a.Amount), math.Abs(b.Amount))
	if haveRules && !qty && !ccy && base > 0 && diff/base <= feeCeilingFraction {
		hs = append(hs, hypothesis{CauseFeeMismatch, 0.8, "compare commission and fee schedules of both systems"})
	}
	if haveRules && len(hs) == 0 {
		hs = append(hs, hypothesis{CauseDataEntry, 0.6, "verify the booking against the trade ticket"})
	}
	if len(hs) == 0 {
		hs = append(hs, hypothesis{CauseUnexplained, 0.4, "investigate manually"})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	top := hs[0]
	for _, h := range hs[1:] {
		if h.confidence > top.confidence {
			top = h
		}
	}
	patterns := make([]map[string]any, len(hs))
	for i, h := range hs {
		patterns[i] = map[string]any{"root_cause": h.cause, "confidence": h.confidence}
	}
	return dag.Result{
		"root_cause":    top.cause,
		"confidence":    top.confidence,
		"patterns":      patterns,
		"suggested_fix": top.fix,
		"status":        "ANALYZED",
	}, nil
}
