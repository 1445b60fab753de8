package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the workflow state of a ticket.
type TicketStatus string

const (
	TicketOpen      TicketStatus = "OPEN"
	TicketResolved  TicketStatus = "RESOLVED"
	TicketEscalated TicketStatus = "ESCALATED"
)

// Audit event types.
const (
	EventWorkflowCreated  = "WORKFLOW_CREATED"
	EventTicketResolved   = "TICKET_RESOLVED"
	EventFeedbackLogged   = "FEEDBACK_LOGGED"
	EventDecisionRecorded = "DECISION_RECORDED"
)

// Ticket tracks the follow-up for one work item.
type Ticket struct {
	ID         string       `json:"ticket_id"`
	WorkItemID string       `json:"break_id"`
	Status     TicketStatus `json:"status"`
	Action     string       `json:"action"`
	Queue      string       `json:"queue,omitempty"`
	Priority   string       `json:"priority,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	Resolution string       `json:"resolution,omitempty"`
}

// AuditEntry is one immutable line of a work item's audit trail.
type AuditEntry struct {
	ID         string         `json:"event_id"`
	WorkItemID string         `json:"break_id"`
	Event      string         `json:"event_type"`
	Actor      string         `json:"actor"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"timestamp"`
}

// Feedback pairs an automated decision with what a reviewer did about it.
type Feedback struct {
	ID          string    `json:"feedback_id"`
	WorkItemID  string    `json:"break_id"`
	Action      string    `json:"agent_action"`
	HumanAction string    `json:"human_action,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Agreed      bool      `json:"agreed"`
	At          time.Time `json:"timestamp"`
}

// TicketFilter narrows ListTickets. Zero fields match everything.
type TicketFilter struct {
	WorkItemID string
	Status     TicketStatus
	Limit      int
}

// Repository persists workflow state. IDs and timestamps left empty on
// create are assigned by the repository.
type Repository interface {
	CreateTicket(ctx context.Context, t Ticket) (Ticket, error)
	GetTicket(ctx context.Context, id string) (Ticket, error)
	ListTickets(ctx context.Context, f TicketFilter) ([]Ticket, error)
	ResolveTicket(ctx context.Context, id, resolution string) (Ticket, error)

	AppendAudit(ctx context.Context, e AuditEntry) (AuditEntry, error)
	Audit(ctx context.Context, workItemID string) ([]AuditEntry, error)

	RecordFeedback(ctx context.Context, f Feedback) (Feedback, error)
	Feedback(ctx context.Context, workItemID string) ([]Feedback, error)
}

// NewID returns prefix, a dash and the first eight hex digits of a random
// UUID, upper-cased.
func NewID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}
