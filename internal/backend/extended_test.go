package backend

import (
	"context"
	"testing"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

func TestExtended_ExtractEntities(t *testing.T) {
	e := NewExtended(nil)

	res, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability:  "extract_entities",
		Snapshot: domain.AbilitySnapshot{Query: "My order 1234567 never arrived"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Entities["product"] != "order" {
		t.Errorf("product = %q, want order", res.Entities["product"])
	}
	if res.Entities["account_number"] != "1234567" {
		t.Errorf("account_number = %q, want 1234567", res.Entities["account_number"])
	}
}

func TestExtended_ExtractEntities_NoMatches(t *testing.T) {
	e := NewExtended(nil)

	res, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability:  "extract_entities",
		Snapshot: domain.AbilitySnapshot{Query: "hello there"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Entities) != 0 {
		t.Errorf("entities = %v, want empty", res.Entities)
	}
}

func TestExtended_EnrichRecords_SLATarget(t *testing.T) {
	e := NewExtended(nil)

	tests := []struct {
		level int
		want  string
	}{
		{level: 1, want: "48h"},
		{level: 2, want: "48h"},
		{level: 3, want: "24h"},
		{level: 4, want: "24h"},
	}
	for _, tt := range tests {
		res, err := e.Invoke(context.Background(), domain.AbilityRequest{
			Ability:  "enrich_records",
			Snapshot: domain.AbilitySnapshot{PriorityLevel: tt.level},
		})
		if err != nil {
			t.Fatalf("Invoke level=%d: %v", tt.level, err)
		}
		if res.Enriched == nil {
			t.Fatalf("level=%d: Enriched is nil", tt.level)
		}
		if res.Enriched.SLATarget != tt.want {
			t.Errorf("level=%d SLATarget = %q, want %q", tt.level, res.Enriched.SLATarget, tt.want)
		}
	}
}

func TestExtended_ClarifyQuestion(t *testing.T) {
	e := NewExtended(nil)

	tests := []struct {
		name string
		snap domain.AbilitySnapshot
		want string
	}{
		{
			name: "missing account number",
			snap: domain.AbilitySnapshot{Query: "billing problem", Entities: map[string]string{}},
			want: "Could you please provide your account number?",
		},
		{
			name: "order without number",
			snap: domain.AbilitySnapshot{
				Query:    "where is my order",
				Entities: map[string]string{"account_number": "123456"},
			},
			want: "What is your order number?",
		},
		{
			name: "generic",
			snap: domain.AbilitySnapshot{
				Query:    "payment 123456 declined",
				Entities: map[string]string{"account_number": "123456"},
			},
			want: "Could you provide more details about your specific issue?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Invoke(context.Background(), domain.AbilityRequest{Ability: "clarify_question", Snapshot: tt.snap})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if res.Question != tt.want {
				t.Errorf("Question = %q, want %q", res.Question, tt.want)
			}
		})
	}
}

func TestExtended_SearchKB(t *testing.T) {
	e := NewExtended(nil)

	res, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability:  "knowledge_base_search",
		Snapshot: domain.AbilitySnapshot{Query: "problem with my payment"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Candidates) == 0 {
		t.Fatal("expected at least one candidate for a payment query")
	}
	if res.Candidates[0].Source != "Resolving payment issues" {
		t.Errorf("top candidate = %q, want the payment article", res.Candidates[0].Source)
	}
	if res.Candidates[0].Score != 92 {
		t.Errorf("top score = %d, want 92", res.Candidates[0].Score)
	}
}

func TestExtended_SearchKB_MergesClarificationResponse(t *testing.T) {
	e := NewExtended(nil)

	// Query alone matches nothing; the clarification response does.
	without, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability:  "knowledge_base_search",
		Snapshot: domain.AbilitySnapshot{Query: "it is broken"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(without.Candidates) != 0 {
		t.Fatalf("expected no candidates for vague query, got %d", len(without.Candidates))
	}

	with, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability: "knowledge_base_search",
		Snapshot: domain.AbilitySnapshot{
			Query:                 "it is broken",
			ClarificationResponse: "it is about my payment",
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(with.Candidates) == 0 {
		t.Fatal("clarification response was not merged into the search")
	}
}

func TestExtended_UpdateAndCloseTicket(t *testing.T) {
	e := NewExtended(nil)
	ctx := context.Background()

	res, err := e.Invoke(ctx, domain.AbilityRequest{
		Ability:  "update_ticket",
		Snapshot: domain.AbilitySnapshot{TicketID: "T-1", EscalationRequired: true},
	})
	if err != nil {
		t.Fatalf("update_ticket: %v", err)
	}
	if res.TicketStatus != domain.TicketEscalated {
		t.Errorf("status = %q, want escalated", res.TicketStatus)
	}
	if st, ok := e.TicketStatus("T-1"); !ok || st != domain.TicketEscalated {
		t.Errorf("ticket table = %q/%v, want escalated/true", st, ok)
	}

	res, err = e.Invoke(ctx, domain.AbilityRequest{
		Ability:  "update_ticket",
		Snapshot: domain.AbilitySnapshot{TicketID: "T-2"},
	})
	if err != nil {
		t.Fatalf("update_ticket: %v", err)
	}
	if res.TicketStatus != domain.TicketResolved {
		t.Errorf("status = %q, want resolved", res.TicketStatus)
	}

	if _, err := e.Invoke(ctx, domain.AbilityRequest{
		Ability:  "close_ticket",
		Snapshot: domain.AbilitySnapshot{TicketID: "T-2"},
	}); err != nil {
		t.Fatalf("close_ticket: %v", err)
	}
	if st, _ := e.TicketStatus("T-2"); st != domain.TicketResolved {
		t.Errorf("ticket table = %q, want resolved", st)
	}
}

func TestExtended_ExecuteAPICalls(t *testing.T) {
	e := NewExtended(nil)

	res, err := e.Invoke(context.Background(), domain.AbilityRequest{
		Ability:  "execute_api_calls",
		Snapshot: domain.AbilitySnapshot{TicketID: "T-1", EscalationRequired: true},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Action == nil || res.Action.Status != "success" {
		t.Fatalf("action = %+v, want success", res.Action)
	}
	if res.Action.Detail == "crm_system: update_customer_record" {
		t.Error("escalated run should also notify the specialist team")
	}
}
