package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/reconflow/component"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/store"
)

type batchRequest struct {
	WorkItems []*profile.WorkItem `json:"work_items"`
}

type resolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

type feedbackRequest struct {
	WorkItemID  string `json:"break_id" binding:"required"`
	Action      string `json:"agent_action" binding:"required"`
	HumanAction string `json:"human_action" binding:"required"`
	Notes       string `json:"notes"`
}

type ticketAudit struct {
	Ticket   store.Ticket       `json:"ticket"`
	Audit    []store.AuditEntry `json:"audit"`
	Feedback []store.Feedback   `json:"feedback"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errors.InvalidInput("body", err.Error()))
		return false
	}
	return true
}

func (s *Server) processWorkItem(c *gin.Context) {
	var item profile.WorkItem
	if !bindJSON(c, &item) {
		return
	}
	ctx := logger.ContextWithWorkItem(c.Request.Context(), item.ID)
	report, err := s.svc.Process(ctx, &item)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

func (s *Server) processBatch(c *gin.Context) {
	var req batchRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.WorkItems) == 0 {
		respondError(c, errors.MissingField("work_items"))
		return
	}
	if s.cfg.MaxBatch > 0 && len(req.WorkItems) > s.cfg.MaxBatch {
		respondError(c, errors.InvalidInput("work_items", "batch exceeds "+strconv.Itoa(s.cfg.MaxBatch)+" items"))
		return
	}
	res, err := s.svc.ProcessBatch(c.Request.Context(), req.WorkItems)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (s *Server) plan(c *gin.Context) {
	var item profile.WorkItem
	if !bindJSON(c, &item) {
		return
	}
	preview, err := s.svc.Plan(c.Request.Context(), &item)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, preview)
}

func (s *Server) policies(c *gin.Context) {
	respondOK(c, s.svc.Policies())
}

func (s *Server) listTickets(c *gin.Context) {
	if s.repo == nil {
		respondError(c, errors.Unavailable("store"))
		return
	}
	f := store.TicketFilter{
		WorkItemID: c.Query("break_id"),
		Status:     store.TicketStatus(c.Query("status")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, errors.InvalidInput("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	tickets, err := s.repo.ListTickets(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, tickets, &Meta{Count: len(tickets), Limit: f.Limit})
}

func (s *Server) ticketAudit(c *gin.Context) {
	if s.repo == nil {
		respondError(c, errors.Unavailable("store"))
		return
	}
	ctx := c.Request.Context()
	t, err := s.repo.GetTicket(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	trail, err := s.repo.Audit(ctx, t.WorkItemID)
	if err != nil {
		respondError(c, err)
		return
	}
	fb, err := s.repo.Feedback(ctx, t.WorkItemID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, ticketAudit{Ticket: t, Audit: trail, Feedback: fb})
}

func (s *Server) resolveTicket(c *gin.Context) {
	if s.repo == nil {
		respondError(c, errors.Unavailable("store"))
		return
	}
	var req resolveRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	t, err := s.repo.ResolveTicket(ctx, c.Param("id"), req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}
	s.appendAudit(c, store.AuditEntry{
		WorkItemID: t.WorkItemID,
		Event:      store.EventTicketResolved,
		Details:    map[string]any{"ticket_id": t.ID, "resolution": req.Resolution},
	})
	respondOK(c, t)
}

func (s *Server) feedback(c *gin.Context) {
	if s.repo == nil {
		respondError(c, errors.Unavailable("store"))
		return
	}
	var req feedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	fb, err := s.repo.RecordFeedback(c.Request.Context(), store.Feedback{
		WorkItemID:  req.WorkItemID,
		Action:      req.Action,
		HumanAction: req.HumanAction,
		Notes:       req.Notes,
		Agreed:      req.Action == req.HumanAction,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.appendAudit(c, store.AuditEntry{
		WorkItemID: fb.WorkItemID,
		Event:      store.EventFeedbackLogged,
		Details:    map[string]any{"feedback_id": fb.ID, "agreed": fb.Agreed, "human_action": fb.HumanAction},
	})
	c.JSON(http.StatusCreated, DataResponse{Data: fb})
}

func (s *Server) appendAudit(c *gin.Context, e store.AuditEntry) {
	e.Actor = actor(c)
	if _, err := s.repo.AppendAudit(c.Request.Context(), e); err != nil {
		s.log.WithContext(c.Request.Context()).Warn("audit write failed", logger.ErrorFields("append_audit", err))
	}
}

func (s *Server) healthz(c *gin.Context) {
	status := component.StatusHealthy
	components := []component.Health{}
	if s.health != nil {
		components = s.health(c.Request.Context())
		for _, h := range components {
			if h.Status == component.StatusUnhealthy {
				status = component.StatusUnhealthy
				break
			}
			if h.Status == component.StatusDegraded {
				status = component.StatusDegraded
			}
		}
	}
	code := http.StatusOK
	if status == component.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
