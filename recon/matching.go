package recon

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Match types.
const (
	MatchDirect      = "DIRECT"
	MatchPartialFill = "PARTIAL_FILL"
	MatchAggregated  = "AGGREGATED"
)

// Matching scores how well system B explains system A, directly or as a
// partial fill, and keeps candidates scoring at least MinSimilarity.
//
// Writes: match_candidates [{reference, match_type, similarity_score,
// matched_fields}], num_candidates, best_score, best_match_type, match_found,
// status (MATCHED | NO_MATCHES).
type Matching struct {
	Settings Settings
}

// Name implements dag.Task.
func (Matching) Name() string { return TaskMatchingCorrelation }

// Invoke implements dag.Task.
func (m Matching) Invoke(ctx context.Context, item *profile.WorkItem, _ dag.Results) (dag.Result, error) {
	a, b := normalizeSide(item.SystemA), normalizeSide(item.SystemB)

	var candidates []map[string]any
	best, bestType := 0.0, ""
	consider := func(kind string, score float64, fields []string) {
		if score < m.Settings.MinSimilarity {
			return
		}
		ref := b.Reference
		if ref == "" {
			ref = b.Source
		}
		candidates = append(candidates, map[string]any{
			"reference":        ref,
			"match_type":       kind,
			"similarity_score": round4(score),
			"matched_fields":   fields,
		})
		if score > best {
			best, bestType = score, kind
		}
	}

	score, fields := directSimilarity(a, b, m.Settings.QuantityTolerance)
	consider(MatchDirect, score, fields)

	// B filled part of A at the same price.
	if a.Quantity > 0 && b.Quantity > 0 && b.Quantity < a.Quantity && a.Price > 0 && b.Price > 0 {
		priceAgree := closeness(a.Price, b.Price)
		fill := b.Quantity / a.Quantity
		consider(MatchPartialFill, 0.6*priceAgree+0.2*currencyScore(a, b)+0.2*math.Min(1, fill*2), []string{"price", "currency"})
	}
	// B aggregates several executions of A.
	if a.Quantity > 0 && b.Quantity > a.Quantity && a.Price > 0 && b.Price > 0 {
		ratio := b.Quantity / a.Quantity
		if math.Abs(ratio-math.Round(ratio)) < 1e-9 {
			consider(MatchAggregated, 0.7*closeness(a.Price, b.Price)+0.3*currencyScore(a, b), []string{"price", "currency"})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(candidates, func(x, y map[string]any) int {
		return cmp.Compare(y["similarity_score"].(float64), x["similarity_score"].(float64))
	})
	status := "NO_MATCHES"
	if len(candidates) > 0 {
		status = "MATCHED"
	}
	if candidates == nil {
		candidates = []map[string]any{}
	}
	return dag.Result{
		"match_candidates": candidates,
		"num_candidates":   len(candidates),
		"best_score":       round4(best),
		"best_match_type":  bestType,
		"match_found":      len(candidates) > 0 && best >= m.Settings.MatchThreshold,
		"status":           status,
	}, nil
}

// directSimilarity weighs amount closeness most, then quantity, currency,
// trade date and reference agreement.
func directSimilarity(a, b profile.Side, qtyTol float64) (float64, []string) {
	var fields []string
	score := 0.5 * closeness(a.Amount, b.Amount)
	if closeness(a.Amount, b.Amount) >= 0.999 {
		fields = append(fields, "amount")
	}
	if math.Abs(a.Quantity-b.Quantity) <= qtyTol {
		score += 0.2
		fields = append(fields, "quantity")
	}
	if c := currencyScore(a, b); c == 1 {
		score += 0.1
		fields = append(fields, "currency")
	}
	if a.TradeDate != "" && a.TradeDate == b.TradeDate {
		score += 0.1
		fields = append(fields, "trade_date")
	}
	if a.Reference != "" && a.Reference == b.Reference {
		score += 0.1
		fields = append(fields, "reference")
	} else if a.Reference == "" && b.Reference == "" {
		score += 0.05
	}
	return math.Min(score, 1), fields
}

// closeness is 1 for equal values and falls linearly with relative difference.
func closeness(x, y float64) float64 {
	x, y = math.Abs(x), math.Abs(y)
	base := math.Max(x, y)
	if base == 0 {
		return 1
	}
	return math.Max(0, 1-math.Abs(x-y)/base)
}

func currencyScore(a, b profile.Side) float64 {
	if a.Currency == "" || b.Currency == "" || a.Currency == b.Currency {
		return 1
	}
	return 0
}

func round4(f float64) float64 {
	return math.Round(f*10_000) / 10_000
}
