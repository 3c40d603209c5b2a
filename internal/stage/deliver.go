package stage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Update writes the decided status to the external ticket system. A backend
// failure here is fatal: ticket state must not diverge silently.
type Update struct {
	Router Router
}

// Stage returns the stage name.
func (e *Update) Stage() domain.Stage { return domain.StageUpdate }

// Run sets ticket_status.
func (e *Update) Run(ctx context.Context, rc *domain.RunContext) error {
	res, err := invoke(ctx, e.Router, "update_ticket", rc)
	if err != nil {
		return fmt.Errorf("update: update_ticket: %w", err)
	}
	if res.TicketStatus == "" {
		res.TicketStatus = domain.TicketPending
	}
	rc.TicketStatus = res.TicketStatus

	if rc.TicketStatus == domain.TicketResolved {
		if _, err := invoke(ctx, e.Router, "close_ticket", rc); err != nil {
			log.Printf("ticket %s: close_ticket failed, status remains %s: %v", rc.Input.TicketID, rc.TicketStatus, err)
		}
	}
	return nil
}

// Create drafts the customer response. One retry, then a templated generic
// response; generation failure never aborts the run.
type Create struct {
	Router Router
}

// Stage returns the stage name.
func (e *Create) Stage() domain.Stage { return domain.StageCreate }

// Run sets generated_response.
func (e *Create) Run(ctx context.Context, rc *domain.RunContext) error {
	res, err := invokeRetry(ctx, e.Router, "response_generation", rc, 2)
	if err != nil || res.Response == "" {
		if err != nil {
			log.Printf("ticket %s: response_generation failed after retry, using fallback template: %v", rc.Input.TicketID, err)
		}
		rc.GeneratedResponse = fallbackResponse(rc)
		return nil
	}
	rc.GeneratedResponse = res.Response
	return nil
}

func fallbackResponse(rc *domain.RunContext) string {
	name := rc.Input.CustomerName
	if name == "" {
		name = "Customer"
	}
	return fmt.Sprintf("Dear %s, Thank you for contacting support about ticket %s. Our team is reviewing your request and will follow up shortly.", name, rc.Input.TicketID)
}

// doAbilities are independent of each other and dispatch concurrently.
var doAbilities = []string{"notify_customer", "log_action", "execute_api_calls"}

// Do performs the outbound actions. Failures are non-fatal and recorded in
// actions_taken as failed entries. Results are appended in the fixed ability
// order so the trail stays deterministic.
type Do struct {
	Router Router
}

// Stage returns the stage name.
func (e *Do) Stage() domain.Stage { return domain.StageDo }

// Run appends to actions_taken.
func (e *Do) Run(ctx context.Context, rc *domain.RunContext) error {
	results := make([]domain.AbilityResult, len(doAbilities))
	errs := make([]error, len(doAbilities))

	var wg sync.WaitGroup
	for i, name := range doAbilities {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i], errs[i] = invoke(ctx, e.Router, name, rc)
		}(i, name)
	}
	wg.Wait()

	now := time.Now().Unix()
	for i, name := range doAbilities {
		if errs[i] != nil {
			spec, _ := e.Router.Resolve(name)
			rc.ActionsTaken = append(rc.ActionsTaken, domain.ActionRecord{
				Ability: name,
				Backend: string(spec.Backend),
				Status:  "failed",
				Detail:  errs[i].Error(),
				AtUnix:  now,
			})
			continue
		}
		if results[i].Action != nil {
			rc.ActionsTaken = append(rc.ActionsTaken, *results[i].Action)
		}
	}
	return nil
}
