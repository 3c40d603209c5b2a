// Package ipc provides the HTTP API for the Ticketflow engine.
package ipc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
	"github.com/anthropics/ticketflow-engine/internal/guard"
	"github.com/anthropics/ticketflow-engine/internal/store"
	"github.com/anthropics/ticketflow-engine/internal/workflow"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Engine    *workflow.Engine
	Guard     *guard.Guard
	DB        *sql.DB
	EventRepo *store.EventRepo
	AuditRepo *store.AuditRepo
}

// ResumeRequest is the body for POST /api/v1/ticket/{ticketID}/resume.
type ResumeRequest struct {
	ClarificationResponse string `json:"clarification_response"`
}

// TicketResponse is the common response shape for submit, get, and resume.
type TicketResponse struct {
	TicketID             string              `json:"ticket_id"`
	Status               domain.RunStatus    `json:"status"`
	CurrentStage         domain.Stage        `json:"current_stage"`
	ClarificationRequest string              `json:"clarification_request,omitempty"`
	Payload              domain.FinalPayload `json:"payload"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ticketResponse(st *domain.RunState) TicketResponse {
	resp := TicketResponse{
		TicketID:     st.TicketID,
		Status:       st.Status,
		CurrentStage: st.CurrentStage,
		Payload:      workflow.BuildFinalPayload(st),
	}
	if st.Status == domain.StatusSuspended {
		resp.ClarificationRequest = st.Context.ClarificationRequest
	}
	return resp
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SubmitTicket handles POST /api/v1/ticket. The workflow runs until it
// suspends at ASK or reaches a terminal state; the response always carries a
// structured payload, including for aborted runs.
func (h *Handler) SubmitTicket(w http.ResponseWriter, r *http.Request) {
	var payload domain.TicketPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if payload.TicketID == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "ticket_id is required"})
		return
	}
	if err := h.Guard.CheckRateLimit(payload.TicketID); err != nil {
		writeError(w, err)
		return
	}

	st, err := h.Engine.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticketResponse(st))
}

// GetTicket handles GET /api/v1/ticket/{ticketID}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")
	st, err := h.Engine.GetState(r.Context(), ticketID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse(st))
}

// ResumeTicket handles POST /api/v1/ticket/{ticketID}/resume.
func (h *Handler) ResumeTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if err := h.Guard.CheckRateLimit(ticketID); err != nil {
		writeError(w, err)
		return
	}

	st, err := h.Engine.Resume(r.Context(), ticketID, req.ClarificationResponse)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse(st))
}

// CancelTicket handles POST /api/v1/ticket/{ticketID}/cancel.
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")
	if err := h.Engine.Cancel(r.Context(), ticketID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /api/v1/ticket/{ticketID}/events?since_seq=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")
	sinceSeq := int64(0)
	if s := r.URL.Query().Get("since_seq"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			sinceSeq = parsed
		}
	}

	events, err := h.EventRepo.ListByTicket(r.Context(), h.DB, ticketID, sinceSeq)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.WorkflowEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StreamEvents handles GET /api/v1/ticket/{ticketID}/events/stream as SSE,
// polling the event log until the client disconnects or the run is terminal.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sinceSeq := int64(0)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		events, err := h.EventRepo.ListByTicket(r.Context(), h.DB, ticketID, sinceSeq)
		if err != nil {
			writeSSEError(w, flusher, err)
			return
		}
		for _, ev := range events {
			writeSSEEvent(w, flusher, ev)
			sinceSeq = ev.SeqNo
			if ev.EventType == "run_completed" || ev.EventType == "run_aborted" {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// ListAudit handles GET /api/v1/ticket/{ticketID}/audit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketID")
	records, err := h.AuditRepo.ListByTicket(r.Context(), h.DB, ticketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if engErr, ok := err.(*domain.EngineError); ok {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrInvalidPayload.Code:
			status = http.StatusBadRequest
		case domain.ErrRunNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrDuplicateRun.Code, domain.ErrNoSuspendedRun.Code:
			status = http.StatusConflict
		case domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		case domain.ErrRunAlreadyDone.Code:
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.WorkflowEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
