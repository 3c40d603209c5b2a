package stage

import (
	"context"
	"log"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// genericClarification is used when the clarify ability cannot draft a
// targeted question. The run still suspends: ASK never completes
// synchronously.
const genericClarification = "Could you provide more details about your specific issue?"

// Ask drafts the clarification request. The orchestrator suspends the run
// after this executor returns; suspension is not a failure.
type Ask struct {
	Router Router
}

// Stage returns the stage name.
func (e *Ask) Stage() domain.Stage { return domain.StageAsk }

// Run sets clarification_request.
func (e *Ask) Run(ctx context.Context, rc *domain.RunContext) error {
	res, err := invoke(ctx, e.Router, "clarify_question", rc)
	if err != nil || res.Question == "" {
		if err != nil {
			log.Printf("ticket %s: clarify_question failed, using generic question: %v", rc.Input.TicketID, err)
		}
		rc.ClarificationRequest = genericClarification
		return nil
	}
	rc.ClarificationRequest = res.Question
	return nil
}

// Wait merges the external clarification response supplied on resume. A
// missing response is not a timeout at this layer; an empty response clears
// the clarification fields so downstream stages behave as if no
// clarification was ever needed.
type Wait struct {
	Router Router
}

// Stage returns the stage name.
func (e *Wait) Stage() domain.Stage { return domain.StageWait }

// Run records clarification_response.
func (e *Wait) Run(ctx context.Context, rc *domain.RunContext) error {
	if rc.ClarificationResponse == "" {
		rc.ClarificationRequest = ""
		return nil
	}
	if _, err := invoke(ctx, e.Router, "store_answer", rc); err != nil {
		log.Printf("ticket %s: store_answer failed, continuing: %v", rc.Input.TicketID, err)
	}
	return nil
}
