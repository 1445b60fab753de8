package orchestrator

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/profile"
)

// BatchItem is the outcome for one input, at the input's index.
type BatchItem struct {
	Index      int               `json:"index"`
	WorkItemID string            `json:"work_item_id"`
	Report     *Report           `json:"report,omitempty"`
	Error      *errors.ErrorBody `json:"error,omitempty"`
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	WorkItems         int            `json:"work_items"`
	Succeeded         int            `json:"succeeded"`
	Failed            int            `json:"failed"`
	TotalPlanned      int            `json:"total_planned"`
	TotalInvoked      int            `json:"total_invoked"`
	TotalSkipped      int            `json:"total_skipped"`
	EfficiencyPercent float64        `json:"efficiency_percent"`
	AverageEfficiency float64        `json:"average_efficiency_percent"`
	EarlyExits        int            `json:"early_exits"`
	Incomplete        int            `json:"incomplete"`
	Decisions         map[string]int `json:"decisions"`
	TotalDurationMs   float64        `json:"total_duration_ms"`
	AvgDurationMs     float64        `json:"avg_duration_ms"`
}

// BatchResult holds per-item outcomes in input order and their summary.
type BatchResult struct {
	Items   []BatchItem  `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// ProcessBatch processes items on at most the configured number of workers.
// A failing item is recorded in its slot and never stops the others. The
// context error is returned when ctx ends before every item was handled.
func (s *Service) ProcessBatch(ctx context.Context, items []*profile.WorkItem) (*BatchResult, error) {
	out := make([]BatchItem, len(items))
	if s.metrics != nil {
		s.metrics.RecordBatch(len(items))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range items {
		out[i].Index = i
		if item != nil {
			out[i].WorkItemID = item.ID
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Error = errorBody(err)
				return nil
			}
			report, err := s.Process(gctx, item)
			out[i].Report = report
			if err != nil {
				out[i].Error = errorBody(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{Items: out, Summary: Summarize(out)}
	s.log.Info("batch processed", map[string]interface{}{
		"work_items":         res.Summary.WorkItems,
		"failed":             res.Summary.Failed,
		"early_exits":        res.Summary.EarlyExits,
		"efficiency":         res.Summary.EfficiencyPercent,
		logger.FieldDuration: res.Summary.TotalDurationMs,
	})
	return res, ctx.Err()
}

// Summarize aggregates batch outcomes. Items with a report count as
// succeeded even when the run was cut short.
func Summarize(items []BatchItem) BatchSummary {
	s := BatchSummary{WorkItems: len(items), Decisions: map[string]int{}}
	var effSum float64
	for _, it := range items {
		r := it.Report
		if r == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.TotalPlanned += r.PlanSummary.Planned
		s.TotalInvoked += r.PlanSummary.Invoked
		s.TotalSkipped += r.PlanSummary.Skipped
		effSum += r.EfficiencyPercent
		if r.EarlyExit {
			s.EarlyExits++
		}
		if r.Incomplete {
			s.Incomplete++
		}
		s.Decisions[string(r.Decision.Action)]++
		s.TotalDurationMs += r.TotalDurationMs
	}
	s.EfficiencyPercent = 100
	if s.TotalPlanned > 0 {
		s.EfficiencyPercent = roundTo(float64(s.TotalInvoked)/float64(s.TotalPlanned)*100, 1)
	}
	if s.Succeeded > 0 {
		s.AverageEfficiency = roundTo(effSum/float64(s.Succeeded), 1)
		s.AvgDurationMs = roundTo(s.TotalDurationMs/float64(s.Succeeded), 3)
	}
	s.TotalDurationMs = roundTo(s.TotalDurationMs, 3)
	return s
}

func errorBody(err error) *errors.ErrorBody {
	body := errors.From(err).ToResponse().Error
	return &body
}

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
