package recon

import (
	"context"
	"fmt"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Enrichment resolves the instrument, account and counterparty referenced by
// the break. It fails only when none of the referenced entities resolve.
//
// Writes: enriched_data{instrument, account, counterparty}, sources_fetched,
// sources_successful, missing, status.
type Enrichment struct {
	Reference Reference
}

// Name implements dag.Task.
func (Enrichment) Name() string { return TaskDataEnrichment }

// Invoke implements dag.Task.
func (e Enrichment) Invoke(ctx context.Context, item *profile.WorkItem, _ dag.Results) (dag.Result, error) {
	ref := e.Reference
	if ref == nil {
		ref = DefaultReference()
	}
	enriched := map[string]any{}
	var missing []string
	fetched := 0

	if id := item.Entity(profile.EntityInstrument); id != "" {
		fetched++
		if v, ok := ref.Instrument(ctx, id); ok {
			enriched["instrument"] = map[string]any{
				"id": v.ID, "asset_class": v.AssetClass, "currency": v.Currency,
				"tolerance_bps": v.ToleranceBps, "lot_size": v.LotSize,
			}
		} else {
			missing = append(missing, "instrument:"+id)
		}
	}
	if id := item.Entity(profile.EntityAccount); id != "" {
		fetched++
		if v, ok := ref.Account(ctx, id); ok {
			enriched["account"] = map[string]any{
				"id": v.ID, "desk": v.Desk, "custodian": v.Custodian, "region": v.Region,
			}
		} else {
			missing = append(missing, "account:"+id)
		}
	}
	if id := item.Entity(profile.EntityCounterparty); id != "" {
		fetched++
		if v, ok := ref.Counterparty(ctx, id); ok {
			enriched["counterparty"] = map[string]any{"id": v.ID, "lei": v.LEI, "rating": v.Rating}
		} else {
			missing = append(missing, "counterparty:"+id)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetched > 0 && len(enriched) == 0 {
		return nil, fmt.Errorf("no reference data for %v", missing)
	}

	status := "ENRICHED"
	if fetched == 0 {
		status = "NO_REFERENCES"
	}
	return dag.Result{
		"enriched_data":      enriched,
		"sources_fetched":    fetched,
		"sources_successful": len(enriched),
		"missing":            missing,
		"status":             status,
	}, nil
}
