package backend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

func TestCommon_NormalizeFields(t *testing.T) {
	c := &Common{Now: fixedNow}

	res, err := c.Invoke(context.Background(), domain.AbilityRequest{
		Ability: "normalize_fields",
		Snapshot: domain.AbilitySnapshot{
			Email:    "  Alice@Example.COM ",
			Priority: domain.PriorityHigh,
			TicketID: "1042",
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Normalized == nil {
		t.Fatal("Normalized is nil")
	}
	if res.Normalized.PriorityLevel != 3 {
		t.Errorf("PriorityLevel = %d, want 3", res.Normalized.PriorityLevel)
	}
	if res.Normalized.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", res.Normalized.Email)
	}
	if res.Normalized.TicketRef != "CS-1042" {
		t.Errorf("TicketRef = %q, want CS-1042", res.Normalized.TicketRef)
	}
}

func TestCommon_AddFlags(t *testing.T) {
	c := &Common{Now: fixedNow}

	tests := []struct {
		name           string
		level          int
		queryLen       int
		wantSLA        int
		wantComplexity int
		wantAuto       bool
		wantSpecialist bool
	}{
		{name: "low priority short query", level: 1, queryLen: 40, wantSLA: 25, wantComplexity: 4},
		{name: "critical caps sla at 100", level: 4, queryLen: 100, wantSLA: 100, wantComplexity: 10, wantAuto: true},
		{name: "long query needs specialist", level: 2, queryLen: 600, wantSLA: 50, wantComplexity: 60, wantSpecialist: true},
		{name: "huge query caps complexity", level: 3, queryLen: 2000, wantSLA: 75, wantComplexity: 100, wantSpecialist: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Invoke(context.Background(), domain.AbilityRequest{
				Ability: "add_flags_calculations",
				Snapshot: domain.AbilitySnapshot{
					PriorityLevel: tt.level,
					Query:         strings.Repeat("x", tt.queryLen),
				},
			})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			f := res.Flags
			if f == nil {
				t.Fatal("Flags is nil")
			}
			if f.SLARiskScore != tt.wantSLA {
				t.Errorf("SLARiskScore = %d, want %d", f.SLARiskScore, tt.wantSLA)
			}
			if f.ComplexityScore != tt.wantComplexity {
				t.Errorf("ComplexityScore = %d, want %d", f.ComplexityScore, tt.wantComplexity)
			}
			if f.AutoEscalate != tt.wantAuto {
				t.Errorf("AutoEscalate = %v, want %v", f.AutoEscalate, tt.wantAuto)
			}
			if f.RequiresSpecialist != tt.wantSpecialist {
				t.Errorf("RequiresSpecialist = %v, want %v", f.RequiresSpecialist, tt.wantSpecialist)
			}
		})
	}
}

func TestCommon_EvaluateSolutions_KeepsExistingScores(t *testing.T) {
	c := &Common{Now: fixedNow}

	res, err := c.Invoke(context.Background(), domain.AbilityRequest{
		Ability: "solution_evaluation",
		Snapshot: domain.AbilitySnapshot{
			Query: "payment failed",
			Candidates: []domain.SolutionCandidate{
				{Source: "Resolving payment issues", Content: "verify billing", Score: 92},
				{Source: "Unrelated article", Content: "nothing relevant"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	if res.Candidates[0].Score != 92 {
		t.Errorf("existing score = %d, want 92 (must be preserved)", res.Candidates[0].Score)
	}
	if res.Candidates[1].Score == 0 {
		t.Error("unscored candidate was not scored")
	}
	if res.Candidates[1].Score > 100 || res.Candidates[1].Score < 0 {
		t.Errorf("score %d outside 0-100", res.Candidates[1].Score)
	}
}

func TestCommon_EvaluateSolutions_Deterministic(t *testing.T) {
	c := &Common{Now: fixedNow}
	snap := domain.AbilitySnapshot{
		Query: "cannot access account",
		Candidates: []domain.SolutionCandidate{
			{Source: "Account access troubleshooting", Content: "reset your password"},
			{Source: "Order tracking", Content: "log in to track"},
		},
	}

	first, err := c.Invoke(context.Background(), domain.AbilityRequest{Ability: "solution_evaluation", Snapshot: snap})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	second, err := c.Invoke(context.Background(), domain.AbilityRequest{Ability: "solution_evaluation", Snapshot: snap})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	for i := range first.Candidates {
		if first.Candidates[i].Score != second.Candidates[i].Score {
			t.Errorf("candidate %d scored differently across identical invocations: %d vs %d",
				i, first.Candidates[i].Score, second.Candidates[i].Score)
		}
	}
}

func TestCommon_GenerateResponse(t *testing.T) {
	c := &Common{Now: fixedNow}

	tests := []struct {
		name      string
		snap      domain.AbilitySnapshot
		wantsPart string
	}{
		{
			name:      "high confidence solution",
			snap:      domain.AbilitySnapshot{CustomerName: "Bob", BestSolutionScore: 95},
			wantsPart: "found a solution",
		},
		{
			name:      "escalated",
			snap:      domain.AbilitySnapshot{CustomerName: "Bob", BestSolutionScore: 40, EscalationRequired: true},
			wantsPart: "specialist team",
		},
		{
			name:      "generic",
			snap:      domain.AbilitySnapshot{CustomerName: "Bob", BestSolutionScore: 80},
			wantsPart: "reviewing your request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Invoke(context.Background(), domain.AbilityRequest{Ability: "response_generation", Snapshot: tt.snap})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if !strings.Contains(res.Response, tt.wantsPart) {
				t.Errorf("Response = %q, want it to contain %q", res.Response, tt.wantsPart)
			}
			if !strings.Contains(res.Response, "Bob") {
				t.Errorf("Response = %q, want customer name", res.Response)
			}
		})
	}
}

func TestCommon_ActionAbilities(t *testing.T) {
	c := &Common{Now: fixedNow}
	snap := domain.AbilitySnapshot{Email: "alice@example.com", TicketID: "T-1", TicketStatus: domain.TicketResolved}

	res, err := c.Invoke(context.Background(), domain.AbilityRequest{Ability: "notify_customer", Snapshot: snap})
	if err != nil {
		t.Fatalf("notify_customer: %v", err)
	}
	if res.Action == nil || res.Action.Status != "sent" {
		t.Errorf("notify_customer action = %+v, want status sent", res.Action)
	}
	if res.Action.AtUnix != fixedNow().Unix() {
		t.Errorf("AtUnix = %d, want injected clock", res.Action.AtUnix)
	}

	res, err = c.Invoke(context.Background(), domain.AbilityRequest{Ability: "log_action", Snapshot: snap})
	if err != nil {
		t.Fatalf("log_action: %v", err)
	}
	if res.Action == nil || res.Action.Status != "logged" {
		t.Errorf("log_action action = %+v, want status logged", res.Action)
	}
}

func TestCommon_UnimplementedAbility(t *testing.T) {
	c := &Common{Now: fixedNow}

	_, err := c.Invoke(context.Background(), domain.AbilityRequest{Ability: "update_ticket"})
	if err == nil {
		t.Fatal("expected error for ability owned by the other backend")
	}
}
