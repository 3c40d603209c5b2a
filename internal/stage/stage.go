// Package stage implements the 11 workflow stage executors. Each executor is
// a transformation of the run context plus zero or more ability invocations
// through the backend router, with the stage's own retry and failure policy.
package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/ticketflow-engine/internal/ability"
	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Router is the slice of the backend router the executors depend on.
type Router interface {
	Invoke(ctx context.Context, req domain.AbilityRequest) (domain.AbilityResult, error)
	Resolve(name string) (ability.Spec, error)
}

// Executor runs one workflow stage against the run context. A returned error
// is fatal: the orchestrator aborts the run. Non-fatal ability failures are
// absorbed inside Run per the stage's policy.
type Executor interface {
	Stage() domain.Stage
	Run(ctx context.Context, rc *domain.RunContext) error
}

// EscalationPolicy holds the configurable DECIDE thresholds.
type EscalationPolicy struct {
	// EscalateBelow forces escalation whenever the best score is under it.
	EscalateBelow int
	// PriorityEscalateBelow applies to high and critical priority tickets.
	PriorityEscalateBelow int
}

// DefaultEscalationPolicy returns the standing thresholds pending
// confirmation against real business rules.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{EscalateBelow: 70, PriorityEscalateBelow: 90}
}

// Pipeline returns the executors in fixed workflow order.
func Pipeline(r Router, policy EscalationPolicy) []Executor {
	return []Executor{
		&Intake{},
		&Understand{Router: r},
		&Prepare{Router: r},
		&Ask{Router: r},
		&Wait{Router: r},
		&Retrieve{Router: r},
		&Decide{Router: r, Policy: policy},
		&Update{Router: r},
		&Create{Router: r},
		&Do{Router: r},
		&Complete{},
	}
}

// snapshotOf builds the read-only input slice an ability receives.
func snapshotOf(rc *domain.RunContext) domain.AbilitySnapshot {
	priority, _ := domain.ParsePriority(rc.Input.Priority)
	s := domain.AbilitySnapshot{
		CustomerName:          rc.Input.CustomerName,
		Email:                 rc.Input.Email,
		Query:                 rc.Input.Query,
		Priority:              priority,
		PriorityLevel:         priority.Level(),
		TicketID:              rc.Input.TicketID,
		Entities:              rc.EntitiesExtracted,
		Normalized:            rc.Normalized,
		Enriched:              rc.EnrichedData,
		Flags:                 rc.Flags,
		ClarificationRequest:  rc.ClarificationRequest,
		ClarificationResponse: rc.ClarificationResponse,
		Candidates:            rc.RetrievedKnowledge,
		BestSolutionScore:     rc.BestSolutionScore,
		EscalationRequired:    rc.EscalationRequired,
		TicketStatus:          rc.TicketStatus,
		GeneratedResponse:     rc.GeneratedResponse,
	}
	return s
}

// invoke runs one ability through the router with the current context slice.
func invoke(ctx context.Context, r Router, name string, rc *domain.RunContext) (domain.AbilityResult, error) {
	return r.Invoke(ctx, domain.AbilityRequest{Ability: name, Snapshot: snapshotOf(rc)})
}

// invokeRetry runs an ability up to attempts times. Deterministic abilities
// are idempotent so repeated attempts are always safe; model-assisted
// abilities are never retried more than once regardless of attempts.
func invokeRetry(ctx context.Context, r Router, name string, rc *domain.RunContext, attempts int) (domain.AbilityResult, error) {
	spec, err := r.Resolve(name)
	if err != nil {
		return domain.AbilityResult{}, err
	}
	if spec.Determinism == domain.ModelAssisted && attempts > 2 {
		attempts = 2
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := invoke(ctx, r, name, rc)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return domain.AbilityResult{}, lastErr
}

// Intake validates the payload already copied into the context. A missing
// required field or malformed priority aborts the run before stage 1
// completion is recorded.
type Intake struct{}

// Stage returns the stage name.
func (e *Intake) Stage() domain.Stage { return domain.StageIntake }

// Run validates the required payload fields.
func (e *Intake) Run(ctx context.Context, rc *domain.RunContext) error {
	var missing []string
	if rc.Input.CustomerName == "" {
		missing = append(missing, "customer_name")
	}
	if rc.Input.Email == "" {
		missing = append(missing, "email")
	}
	if rc.Input.Query == "" {
		missing = append(missing, "query")
	}
	if rc.Input.TicketID == "" {
		missing = append(missing, "ticket_id")
	}
	if len(missing) > 0 {
		return domain.NewEngineError(
			domain.ErrInvalidPayload.Code,
			"missing required fields: "+strings.Join(missing, ", "),
		)
	}
	if _, ok := domain.ParsePriority(rc.Input.Priority); !ok {
		return domain.NewEngineError(
			domain.ErrInvalidPayload.Code,
			fmt.Sprintf("malformed priority %q", rc.Input.Priority),
		)
	}
	return nil
}

// Complete freezes the context as final output. Always succeeds if reached.
type Complete struct{}

// Stage returns the stage name.
func (e *Complete) Stage() domain.Stage { return domain.StageComplete }

// Run marks the run context complete.
func (e *Complete) Run(ctx context.Context, rc *domain.RunContext) error {
	return nil
}
