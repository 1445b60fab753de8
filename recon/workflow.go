package recon

import (
	"context"
	"fmt"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/store"
)

// Workflow opens a ticket for the decided action and records the hand-off in
// the audit trail. Without an upstream decision it routes to review.
//
// Writes: ticket_id, ticket_status, queue, priority, audit_event_id, status.
type Workflow struct {
	Store store.Repository
}

// Name implements dag.Task.
func (Workflow) Name() string { return TaskWorkflowFeedback }

// Invoke implements dag.Task.
func (w Workflow) Invoke(ctx context.Context, item *profile.WorkItem, results dag.Results) (dag.Result, error) {
	if w.Store == nil {
		return nil, fmt.Errorf("no ticket store configured")
	}
	action, ok := dag.Read(results, PortDecisionAction)
	if !ok || !dag.Action(action).Valid() || dag.Action(action) == dag.ActionContinue {
		action = string(dag.ActionHILReview)
	}
	risk, _ := dag.Read(results, PortRiskScore)

	t := store.Ticket{
		WorkItemID: item.ID,
		Action:     action,
		Priority:   priorityFor(risk),
		Summary:    fmt.Sprintf("%s break, difference %.2f", item.Category, profile.Magnitude(item)),
	}
	switch dag.Action(action) {
	case dag.ActionAutoResolve:
		t.Status = store.TicketResolved
		t.Queue = "auto"
		t.Resolution = "auto-resolved"
	case dag.ActionEscalate:
		t.Status = store.TicketEscalated
		t.Queue = "escalations"
	default:
		t.Status = store.TicketOpen
		t.Queue = "hil-review"
	}
	ticket, err := w.Store.CreateTicket(ctx, t)
	if err != nil {
		return nil, err
	}
	evt, err := w.Store.AppendAudit(ctx, store.AuditEntry{
		WorkItemID: item.ID,
		Event:      store.EventWorkflowCreated,
		Actor:      TaskWorkflowFeedback,
		Details: map[string]any{
			"ticket_id":    ticket.ID,
			"action":       action,
			"requires_hil": dag.Action(action) != dag.ActionAutoResolve,
		},
	})
	if err != nil {
		return nil, err
	}
	return dag.Result{
		"ticket_id":      ticket.ID,
		"ticket_status":  string(ticket.Status),
		"queue":          ticket.Queue,
		"priority":       ticket.Priority,
		"audit_event_id": evt.ID,
		"status":         "WORKFLOW_CREATED",
	}, nil
}

func priorityFor(risk float64) string {
	switch {
	case risk >= 0.75:
		return "HIGH"
	case risk >= 0.4:
		return "MEDIUM"
	}
	return "LOW"
}
