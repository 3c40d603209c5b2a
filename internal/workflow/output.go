package workflow

import "github.com/anthropics/ticketflow-engine/internal/domain"

// FinalStatus maps a run state to the external final_status value. Aborted
// runs report "aborted" rather than surfacing a bare error; runs that have
// not reached a terminal state report "pending".
func FinalStatus(st *domain.RunState) string {
	switch st.Status {
	case domain.StatusAborted:
		return "aborted"
	case domain.StatusCompleted:
		if st.Context.EscalationRequired {
			return "escalated"
		}
		return "resolved"
	default:
		return "pending"
	}
}

// BuildFinalPayload assembles the structured output contract from a run
// state. It is valid for any run, including suspended and aborted ones.
func BuildFinalPayload(st *domain.RunState) domain.FinalPayload {
	rc := st.Context

	entities := rc.EntitiesExtracted
	if entities == nil {
		entities = map[string]string{}
	}
	stages := rc.StagesCompleted
	if stages == nil {
		stages = []domain.Stage{}
	}
	actions := rc.ActionsTaken
	if actions == nil {
		actions = []domain.ActionRecord{}
	}

	return domain.FinalPayload{
		Input: rc.Input,
		Processing: domain.ProcessingBlock{
			StagesCompleted:      stages,
			EntitiesExtracted:    entities,
			EnrichedData:         rc.EnrichedData,
			KnowledgeBaseResults: len(rc.RetrievedKnowledge),
			SolutionsEvaluated:   rc.SolutionsEvaluated,
		},
		Decisions: domain.DecisionsBlock{
			EscalationRequired: rc.EscalationRequired,
			EscalationReason:   rc.EscalationReason,
			BestSolutionScore:  rc.BestSolutionScore,
		},
		Output: domain.OutputBlock{
			GeneratedResponse: rc.GeneratedResponse,
			ActionsExecuted:   actions,
			FinalStatus:       FinalStatus(st),
		},
		Metadata: domain.MetadataBlock{
			CreatedAtUnix:   rc.CreatedAtUnix,
			CompletedAtUnix: rc.CompletedAtUnix,
			AbortReason:     st.AbortReason,
		},
	}
}
