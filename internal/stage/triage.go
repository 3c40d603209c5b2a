package stage

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Understand parses the request text and extracts entities. The extraction
// ability is model-assisted: one retry, then the stage proceeds with an
// empty extraction rather than aborting.
type Understand struct {
	Router Router
}

// Stage returns the stage name.
func (e *Understand) Stage() domain.Stage { return domain.StageUnderstand }

// Run sets entities_extracted.
func (e *Understand) Run(ctx context.Context, rc *domain.RunContext) error {
	if _, err := invoke(ctx, e.Router, "parse_request_text", rc); err != nil {
		log.Printf("ticket %s: parse_request_text failed, continuing: %v", rc.Input.TicketID, err)
	}

	res, err := invokeRetry(ctx, e.Router, "extract_entities", rc, 2)
	if err != nil {
		log.Printf("ticket %s: extract_entities failed after retry, proceeding with empty extraction: %v", rc.Input.TicketID, err)
		rc.EntitiesExtracted = map[string]string{}
		return nil
	}
	if res.Entities == nil {
		res.Entities = map[string]string{}
	}
	rc.EntitiesExtracted = res.Entities
	return nil
}

// Prepare normalizes and enriches the ticket data. All three abilities are
// deterministic: each is retried up to 2 extra times, and exhaustion is
// fatal to the run.
type Prepare struct {
	Router Router
}

// Stage returns the stage name.
func (e *Prepare) Stage() domain.Stage { return domain.StagePrepare }

// Run sets normalized_fields, enriched_data, and flags.
func (e *Prepare) Run(ctx context.Context, rc *domain.RunContext) error {
	for _, name := range []string{"normalize_fields", "enrich_records", "add_flags_calculations"} {
		res, err := invokeRetry(ctx, e.Router, name, rc, 3)
		if err != nil {
			return fmt.Errorf("prepare: %s: %w", name, err)
		}
		if res.Normalized != nil {
			rc.Normalized = res.Normalized
		}
		if res.Enriched != nil {
			rc.EnrichedData = res.Enriched
		}
		if res.Flags != nil {
			rc.Flags = res.Flags
		}
	}
	return nil
}
