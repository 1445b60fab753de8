package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/reconflow/component"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
)

// Memory is a Repository held in process memory. It is safe for concurrent
// use and is lost on exit.
type Memory struct {
	mu       sync.RWMutex
	open     bool
	tickets  []Ticket
	byID     map[string]int
	audit    map[string][]AuditEntry
	feedback map[string][]Feedback

	now func() time.Time
	log *logger.Logger
}

var (
	_ Repository          = (*Memory)(nil)
	_ component.Component = (*Memory)(nil)
)

// MemoryOption configures a Memory repository.
type MemoryOption func(*Memory)

// WithClock replaces time.Now for assigned timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithLogger sets the repository logger.
func WithLogger(l *logger.Logger) MemoryOption {
	return func(m *Memory) { m.log = l }
}

// NewMemory returns an empty, open repository.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		open:     true,
		byID:     make(map[string]int),
		audit:    make(map[string][]AuditEntry),
		feedback: make(map[string][]Feedback),
		now:      time.Now,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("store")
	return m
}

// Name implements component.Component.
func (m *Memory) Name() string { return "store" }

// Start implements component.Component.
func (m *Memory) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Stop closes the repository. Writes after Stop fail; reads keep working.
func (m *Memory) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.log.Info("store closed", map[string]interface{}{"tickets": len(m.tickets)})
	return nil
}

// Health implements component.Component.
func (m *Memory) Health(ctx context.Context) component.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: "closed"}
	}
	return component.Health{Name: m.Name(), Status: component.StatusHealthy, Message: fmt.Sprintf("%d tickets", len(m.tickets))}
}

// Describe implements component.Describable.
func (m *Memory) Describe() component.Description {
	return component.Description{Name: "Ticket store", Type: "store", Details: "in-memory"}
}

func (m *Memory) writable() error {
	if !m.open {
		return errors.Unavailable("store")
	}
	return nil
}

// CreateTicket stores t, assigning ID, status and creation time when unset.
func (m *Memory) CreateTicket(ctx context.Context, t Ticket) (Ticket, error) {
	if t.WorkItemID == "" {
		return Ticket{}, errors.MissingField("break_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return Ticket{}, err
	}
	if t.ID == "" {
		t.ID = NewID("TKT")
	}
	if _, dup := m.byID[t.ID]; dup {
		return Ticket{}, errors.Conflict("ticket", t.ID, "already exists")
	}
	if t.Status == "" {
		t.Status = TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	if t.Status == TicketResolved && t.ResolvedAt == nil {
		at := t.CreatedAt
		t.ResolvedAt = &at
	}
	m.byID[t.ID] = len(m.tickets)
	m.tickets = append(m.tickets, t)
	return t, nil
}

// GetTicket returns the ticket with id.
func (m *Memory) GetTicket(ctx context.Context, id string) (Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Ticket{}, errors.NotFound("ticket", id)
	}
	return m.tickets[i], nil
}

// ListTickets returns tickets in creation order.
func (m *Memory) ListTickets(ctx context.Context, f TicketFilter) ([]Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Ticket{}
	for _, t := range m.tickets {
		if f.WorkItemID != "" && t.WorkItemID != f.WorkItemID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// ResolveTicket closes the ticket with resolution. Resolving twice is a
// conflict.
func (m *Memory) ResolveTicket(ctx context.Context, id, resolution string) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return Ticket{}, err
	}
	i, ok := m.byID[id]
	if !ok {
		return Ticket{}, errors.NotFound("ticket", id)
	}
	t := &m.tickets[i]
	if t.Status == TicketResolved {
		return Ticket{}, errors.Conflict("ticket", id, "is already resolved")
	}
	at := m.now()
	t.Status = TicketResolved
	t.ResolvedAt = &at
	t.Resolution = resolution
	return *t, nil
}

// AppendAudit appends e to its work item's trail.
func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) (AuditEntry, error) {
	if e.WorkItemID == "" {
		return AuditEntry{}, errors.MissingField("break_id")
	}
	if e.Event == "" {
		return AuditEntry{}, errors.MissingField("event_type")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return AuditEntry{}, err
	}
	if e.ID == "" {
		e.ID = NewID("EVT")
	}
	if e.At.IsZero() {
		e.At = m.now()
	}
	e.Details = maps.Clone(e.Details)
	m.audit[e.WorkItemID] = append(m.audit[e.WorkItemID], e)
	return e, nil
}

// Audit returns the trail for workItemID, oldest first.
func (m *Memory) Audit(ctx context.Context, workItemID string) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.audit[workItemID])
	if out == nil {
		out = []AuditEntry{}
	}
	return out, nil
}

// RecordFeedback stores f.
func (m *Memory) RecordFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	if f.WorkItemID == "" {
		return Feedback{}, errors.MissingField("break_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return Feedback{}, err
	}
	if f.ID == "" {
		f.ID = NewID("FB")
	}
	if f.At.IsZero() {
		f.At = m.now()
	}
	m.feedback[f.WorkItemID] = append(m.feedback[f.WorkItemID], f)
	return f, nil
}

// Feedback returns the feedback recorded for workItemID, oldest first.
func (m *Memory) Feedback(ctx context.Context, workItemID string) ([]Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.feedback[workItemID])
	if out == nil {
		out = []Feedback{}
	}
	return out, nil
}
