package recon

import (
	"context"
	"math"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Rule names reported in violated_rules and checks.
const (
	RuleAmountTolerance   = "amount_tolerance"
	RuleQuantityTolerance = "quantity_tolerance"
	RuleCurrency          = "currency_match"
	RuleTradeDate         = "trade_date_match"
)

// Rules applies the tolerance and consistency checks. An instrument-level
// tolerance from enrichment overrides AmountToleranceBps.
//
// Writes: difference, difference_bps, within_tolerance,
// within_rounding_tolerance, currency_mismatch, quantity_mismatch,
// trade_date_mismatch, checks{<rule>{passed, value, limit}}, violated_rules,
// all_critical_rules_passed, status (RULES_PASSED | RULES_FAILED).
type Rules struct {
	Settings Settings
}

// Name implements dag.Task.
func (Rules) Name() string { return TaskRulesTolerance }

// Invoke implements dag.Task.
func (r Rules) Invoke(ctx context.Context, item *profile.WorkItem, results dag.Results) (dag.Result, error) {
	s := r.Settings
	a, b := normalizeSide(item.SystemA), normalizeSide(item.SystemB)

	diff := math.Abs(a.Amount - b.Amount)
	base := math.Max(math.Abs(a.Amount), math.Abs(b.Amount))
	bps := 0.0
	if base > 0 {
		bps = diff / base * 10_000
	}
	limitBps := s.AmountToleranceBps
	if override, ok := dag.Read(results, PortToleranceOverride); ok && override > 0 {
		limitBps = override
	}

	amountOK := bps <= limitBps || diff <= s.AbsoluteTolerance
	qtyDiff := math.Abs(a.Quantity - b.Quantity)
	qtyOK := qtyDiff <= s.QuantityTolerance
	ccyMismatch := a.Currency != "" && b.Currency != "" && a.Currency != b.Currency
	dateMismatch := a.TradeDate != "" && b.TradeDate != "" && a.TradeDate != b.TradeDate

	checks := map[string]any{
		RuleAmountTolerance: map[string]any{
			"passed": amountOK, "value": round4(bps), "limit": limitBps,
			"absolute_value": round4(diff), "absolute_limit": s.AbsoluteTolerance,
		},
		RuleQuantityTolerance: map[string]any{"passed": qtyOK, "value": round4(qtyDiff), "limit": s.QuantityTolerance},
		RuleCurrency:          map[string]any{"passed": !ccyMismatch, "value": a.Currency + "/" + b.Currency},
		RuleTradeDate:         map[string]any{"passed": !dateMismatch, "value": a.TradeDate + "/" + b.TradeDate},
	}
	violated := []string{}
	if !amountOK {
		violated = append(violated, RuleAmountTolerance)
	}
	if !qtyOK {
		violated = append(violated, RuleQuantityTolerance)
	}
	if ccyMismatch {
		violated = append(violated, RuleCurrency)
	}
	// A trade-date difference is a known settlement lag, not a violation.
	critical := amountOK && qtyOK && !ccyMismatch

	status := "RULES_PASSED"
	if !critical {
		status = "RULES_FAILED"
	}
	return dag.Result{
		"difference":                round4(diff),
		"difference_bps":            round4(bps),
		"within_tolerance":          critical,
		"within_rounding_tolerance": diff <= s.RoundingTolerance && qtyOK && !ccyMismatch,
		"currency_mismatch":         ccyMismatch,
		"quantity_mismatch":         !qtyOK,
		"trade_date_mismatch":       dateMismatch,
		"checks":                    checks,
		"violated_rules":            violated,
		"all_critical_rules_passed": critical,
		"status":                    status,
	}, nil
}
