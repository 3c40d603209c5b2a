package stage

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Retrieve searches the knowledge base for candidate solutions. The search
// is retried once; exhaustion leaves an empty candidate set rather than
// aborting the run.
type Retrieve struct {
	Router Router
}

// Stage returns the stage name.
func (e *Retrieve) Stage() domain.Stage { return domain.StageRetrieve }

// Run sets retrieved_knowledge and solutions_evaluated.
func (e *Retrieve) Run(ctx context.Context, rc *domain.RunContext) error {
	res, err := invokeRetry(ctx, e.Router, "knowledge_base_search", rc, 2)
	if err != nil {
		log.Printf("ticket %s: knowledge_base_search failed after retry, proceeding with no candidates: %v", rc.Input.TicketID, err)
		res = domain.AbilityResult{}
	}

	rc.RetrievedKnowledge = res.Candidates
	rc.SolutionsEvaluated = len(res.Candidates)

	if len(res.Candidates) > 0 {
		if _, err := invoke(ctx, e.Router, "store_data", rc); err != nil {
			log.Printf("ticket %s: store_data failed, continuing: %v", rc.Input.TicketID, err)
		}
	}
	return nil
}

// Decide scores the candidates and fixes the escalation decision. The
// scoring ability is model-assisted and optional: if it fails, the raw
// candidate scores stand. The escalation outcome itself is deterministic
// given the best score and the ticket priority, and is set exactly once.
type Decide struct {
	Router Router
	Policy EscalationPolicy
}

// Stage returns the stage name.
func (e *Decide) Stage() domain.Stage { return domain.StageDecide }

// Run sets best_solution_score and escalation_required.
func (e *Decide) Run(ctx context.Context, rc *domain.RunContext) error {
	if len(rc.RetrievedKnowledge) > 0 {
		res, err := invoke(ctx, e.Router, "solution_evaluation", rc)
		if err != nil {
			log.Printf("ticket %s: solution_evaluation failed, keeping raw candidate scores: %v", rc.Input.TicketID, err)
		} else if len(res.Candidates) > 0 {
			rc.RetrievedKnowledge = res.Candidates
		}
	}

	best := 0
	for _, c := range rc.RetrievedKnowledge {
		if c.Score > best {
			best = c.Score
		}
	}
	rc.BestSolutionScore = best
	rc.SolutionsEvaluated = len(rc.RetrievedKnowledge)

	priority, _ := domain.ParsePriority(rc.Input.Priority)
	escalate, reason := e.Policy.Evaluate(best, priority, rc.SolutionsEvaluated)
	rc.EscalationRequired = escalate
	rc.EscalationReason = reason
	return nil
}

// Evaluate applies the escalation thresholds to a best score and priority.
func (p EscalationPolicy) Evaluate(best int, priority domain.Priority, evaluated int) (bool, string) {
	switch {
	case evaluated == 0:
		return true, "no solution candidates retrieved"
	case best < p.EscalateBelow:
		return true, fmt.Sprintf("best solution score %d below threshold %d", best, p.EscalateBelow)
	case (priority == domain.PriorityHigh || priority == domain.PriorityCritical) && best < p.PriorityEscalateBelow:
		return true, fmt.Sprintf("best solution score %d below %s-priority threshold %d", best, priority, p.PriorityEscalateBelow)
	default:
		return false, ""
	}
}
