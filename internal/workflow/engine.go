// Package workflow implements the fixed 11-stage ticket state machine.
package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/ticketflow-engine/internal/domain"
	"github.com/anthropics/ticketflow-engine/internal/stage"
	"github.com/anthropics/ticketflow-engine/internal/store"
)

// Engine drives workflow runs through the fixed stage order, persisting the
// run context at every stage boundary so suspension and resume survive
// process restarts.
type Engine struct {
	DB           *sql.DB
	RunRepo      *store.RunRepo
	EventRepo    *store.EventRepo
	SnapshotRepo *store.SnapshotRepo
	AuditRepo    *store.AuditRepo

	executors map[domain.Stage]stage.Executor
}

// NewEngine creates an engine over the given database and backend router.
func NewEngine(db *sql.DB, router stage.Router, policy stage.EscalationPolicy) *Engine {
	execs := make(map[domain.Stage]stage.Executor)
	for _, ex := range stage.Pipeline(router, policy) {
		execs[ex.Stage()] = ex
	}
	return &Engine{
		DB:           db,
		RunRepo:      &store.RunRepo{},
		EventRepo:    &store.EventRepo{},
		SnapshotRepo: &store.SnapshotRepo{},
		AuditRepo:    &store.AuditRepo{},
		executors:    execs,
	}
}

// Submit accepts a ticket payload and runs the workflow until it suspends at
// ASK or reaches a terminal state. Fatal stage failures do not surface as
// errors: the returned state carries the aborted status and reason so the
// caller always gets a structured result.
func (e *Engine) Submit(ctx context.Context, payload domain.TicketPayload) (*domain.RunState, error) {
	if payload.TicketID == "" {
		return nil, domain.NewEngineError(domain.ErrInvalidPayload.Code, "ticket_id is required")
	}
	if existing, err := e.RunRepo.GetByID(ctx, e.DB, payload.TicketID); err == nil && existing != nil {
		return nil, domain.ErrDuplicateRun
	}

	now := time.Now().Unix()
	st := domain.RunState{
		TicketID:     payload.TicketID,
		CurrentStage: domain.StageIntake,
		Status:       domain.StatusRunning,
		StateVersion: 1,
		LastEventSeq: 1,
		Context: domain.RunContext{
			Input:         payload,
			CreatedAtUnix: now,
		},
		UpdatedAtUnix: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.RunRepo.CreateTx(ctx, tx, st); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := e.EventRepo.AppendTx(ctx, tx, domain.WorkflowEvent{
		TicketID:    st.TicketID,
		SeqNo:       1,
		Stage:       domain.StageIntake,
		EventType:   "run_started",
		PayloadJSON: mustJSON(map[string]string{"priority": payload.Priority}),
		CreatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("append start event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err := e.runLoop(ctx, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Resume supplies the external clarification response to a suspended run and
// continues execution at WAIT.
func (e *Engine) Resume(ctx context.Context, ticketID, response string) (*domain.RunState, error) {
	st, err := e.RunRepo.GetByID(ctx, e.DB, ticketID)
	if err != nil {
		if err == domain.ErrRunNotFound {
			return nil, domain.ErrNoSuspendedRun
		}
		return nil, err
	}
	if st.Status != domain.StatusSuspended {
		return nil, domain.ErrNoSuspendedRun
	}

	st.Status = domain.StatusRunning
	st.Context.ClarificationResponse = response
	if err := e.persist(ctx, st, "run_resumed", mustJSON(map[string]int{"response_chars": len(response)})); err != nil {
		return nil, err
	}

	if err := e.runLoop(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Cancel requests cancellation of a run. A running workflow aborts at its
// next stage boundary; a suspended one aborts immediately.
func (e *Engine) Cancel(ctx context.Context, ticketID string) error {
	st, err := e.RunRepo.GetByID(ctx, e.DB, ticketID)
	if err != nil {
		return err
	}
	switch st.Status {
	case domain.StatusSuspended:
		return e.abort(ctx, st, domain.AbortCancelled, nil)
	case domain.StatusRunning:
		return e.RunRepo.RequestCancel(ctx, e.DB, ticketID)
	default:
		return domain.ErrRunAlreadyDone
	}
}

// GetState returns the current state of a run.
func (e *Engine) GetState(ctx context.Context, ticketID string) (*domain.RunState, error) {
	return e.RunRepo.GetByID(ctx, e.DB, ticketID)
}

// runLoop executes stages in fixed order from the run's current stage until
// suspension, completion, or abort. Cancellation is honored only at stage
// boundaries, never mid-ability-call.
func (e *Engine) runLoop(ctx context.Context, st *domain.RunState) error {
	for {
		if cancelled, err := e.cancelRequested(ctx, st); err != nil {
			return err
		} else if cancelled {
			return e.abort(ctx, st, domain.AbortCancelled, nil)
		}

		exec, ok := e.executors[st.CurrentStage]
		if !ok {
			return domain.NewEngineError(domain.ErrInvalidStage.Code, "no executor for stage "+string(st.CurrentStage))
		}

		if err := exec.Run(ctx, &st.Context); err != nil {
			return e.abort(ctx, st, domain.AbortFatalStageFailure, err)
		}

		completed := st.CurrentStage
		st.Context.StagesCompleted = append(st.Context.StagesCompleted, completed)

		switch completed {
		case domain.StageAsk:
			// ASK never completes the run synchronously: suspend and
			// hand control back until the clarification response arrives.
			st.Status = domain.StatusSuspended
			st.CurrentStage = domain.StageWait
			return e.persist(ctx, st, "run_suspended", mustJSON(map[string]string{
				"clarification_request": st.Context.ClarificationRequest,
			}))

		case domain.StageComplete:
			st.Status = domain.StatusCompleted
			st.Context.CompletedAtUnix = time.Now().Unix()
			if err := e.persist(ctx, st, "run_completed", mustJSON(map[string]any{
				"escalation_required": st.Context.EscalationRequired,
				"best_solution_score": st.Context.BestSolutionScore,
				"final_status":        FinalStatus(st),
			})); err != nil {
				return err
			}
			e.audit(ctx, st, "decision", "complete", mustJSON(map[string]any{
				"escalation_required": st.Context.EscalationRequired,
				"best_solution_score": st.Context.BestSolutionScore,
				"ticket_status":       st.Context.TicketStatus,
			}))
			return nil

		default:
			st.CurrentStage = domain.StageOrder[domain.StageIndex(completed)+1]
			if err := e.persist(ctx, st, "stage_completed", mustJSON(map[string]string{
				"stage": string(completed),
			})); err != nil {
				return err
			}
		}
	}
}

// cancelRequested re-reads the run row so a cancel issued from another
// request is seen at the boundary. Context cancellation counts too.
func (e *Engine) cancelRequested(ctx context.Context, st *domain.RunState) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	fresh, err := e.RunRepo.GetByID(ctx, e.DB, st.TicketID)
	if err != nil {
		return false, err
	}
	st.CancelRequested = fresh.CancelRequested
	st.StateVersion = fresh.StateVersion
	return fresh.CancelRequested, nil
}

// abort moves a run to the terminal aborted state, preserving the partial
// stages_completed trail for diagnostics. The terminal write must land even
// when the triggering context is already cancelled.
func (e *Engine) abort(ctx context.Context, st *domain.RunState, reason string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	st.Status = domain.StatusAborted
	st.AbortReason = reason
	st.Context.CompletedAtUnix = time.Now().Unix()

	detail := map[string]string{"reason": reason}
	if cause != nil {
		detail["cause"] = cause.Error()
	}
	if err := e.persist(ctx, st, "run_aborted", mustJSON(detail)); err != nil {
		return err
	}
	e.audit(ctx, st, "run", "abort", mustJSON(detail))
	return nil
}

// persist writes the run state, one event, and a context snapshot in a
// single transaction at a stage boundary.
func (e *Engine) persist(ctx context.Context, st *domain.RunState, eventType, payloadJSON string) error {
	now := time.Now().Unix()
	st.LastEventSeq++
	st.UpdatedAtUnix = now

	ctxJSON, err := json.Marshal(st.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.EventRepo.AppendTx(ctx, tx, domain.WorkflowEvent{
		TicketID:    st.TicketID,
		SeqNo:       st.LastEventSeq,
		Stage:       st.CurrentStage,
		EventType:   eventType,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	if err := e.SnapshotRepo.SaveTx(ctx, tx, domain.ContextSnapshot{
		TicketID:     st.TicketID,
		Stage:        st.CurrentStage,
		SnapshotJSON: string(ctxJSON),
		CreatedAt:    now,
	}); err != nil {
		return err
	}

	if err := e.RunRepo.UpdateStateTx(ctx, tx, *st); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	st.StateVersion++
	return nil
}

// audit records a best-effort audit entry; failures are not fatal to the run.
func (e *Engine) audit(ctx context.Context, st *domain.RunState, category, action, decisionJSON string) {
	_ = e.AuditRepo.Record(ctx, e.DB, domain.AuditRecord{
		ID:           uuid.NewString(),
		TicketID:     st.TicketID,
		Category:     category,
		Actor:        "engine",
		Action:       action,
		DecisionJSON: decisionJSON,
		Severity:     "info",
		CreatedAt:    time.Now().Unix(),
	})
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
