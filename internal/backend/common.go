package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Common is the in-process common backend: generic data operations such as
// normalization, scoring, response drafting, and notification dispatch.
// It holds no per-run state and is safe for concurrent use.
type Common struct {
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewCommon creates the common backend.
func NewCommon() *Common {
	return &Common{Now: time.Now}
}

// ID returns the backend identifier.
func (c *Common) ID() domain.BackendID {
	return domain.BackendCommon
}

// Invoke executes a common-backend ability against the input slice.
func (c *Common) Invoke(ctx context.Context, req domain.AbilityRequest) (domain.AbilityResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.AbilityResult{}, err
	}

	switch req.Ability {
	case "parse_request_text":
		return c.parseRequestText(req.Snapshot), nil
	case "normalize_fields":
		return c.normalizeFields(req.Snapshot), nil
	case "add_flags_calculations":
		return c.addFlags(req.Snapshot), nil
	case "store_answer":
		return domain.AbilityResult{Note: fmt.Sprintf("answer stored (%d chars)", len(req.Snapshot.ClarificationResponse))}, nil
	case "store_data":
		return domain.AbilityResult{Note: fmt.Sprintf("%d candidates attached", len(req.Snapshot.Candidates))}, nil
	case "solution_evaluation":
		return c.evaluateSolutions(req.Snapshot), nil
	case "response_generation":
		return c.generateResponse(req.Snapshot), nil
	case "notify_customer":
		return c.notifyCustomer(req.Snapshot), nil
	case "log_action":
		return c.logAction(req.Snapshot), nil
	default:
		return domain.AbilityResult{}, fmt.Errorf("common backend does not implement %q", req.Ability)
	}
}

func (c *Common) parseRequestText(s domain.AbilitySnapshot) domain.AbilityResult {
	urgencyWords := []string{"urgent", "emergency", "asap", "critical", "immediately"}
	query := strings.ToLower(s.Query)

	var found []string
	for _, w := range urgencyWords {
		if strings.Contains(query, w) {
			found = append(found, w)
		}
	}
	note := "no urgency keywords"
	if len(found) > 0 {
		note = "urgency keywords: " + strings.Join(found, ",")
	}
	return domain.AbilityResult{Note: note}
}

func (c *Common) normalizeFields(s domain.AbilitySnapshot) domain.AbilityResult {
	ref := "CS-UNKNOWN"
	if s.TicketID != "" {
		ref = "CS-" + s.TicketID
	}
	return domain.AbilityResult{
		Normalized: &domain.NormalizedFields{
			PriorityLevel: s.Priority.Level(),
			Email:         strings.ToLower(strings.TrimSpace(s.Email)),
			TicketRef:     ref,
		},
	}
}

func (c *Common) addFlags(s domain.AbilitySnapshot) domain.AbilityResult {
	level := s.PriorityLevel
	if s.Normalized != nil {
		level = s.Normalized.PriorityLevel
	}
	slaRisk := level * 25
	if slaRisk > 100 {
		slaRisk = 100
	}
	complexity := len(s.Query) / 10
	if complexity > 100 {
		complexity = 100
	}
	return domain.AbilityResult{
		Flags: &domain.RiskFlags{
			SLARiskScore:       slaRisk,
			ComplexityScore:    complexity,
			AutoEscalate:       slaRisk > 75,
			RequiresSpecialist: complexity > 50,
		},
	}
}

// evaluateSolutions scores each retrieved candidate by query-term overlap.
// Candidates that already carry a score keep it.
func (c *Common) evaluateSolutions(s domain.AbilitySnapshot) domain.AbilityResult {
	queryWords := strings.Fields(strings.ToLower(s.Query))

	scored := make([]domain.SolutionCandidate, 0, len(s.Candidates))
	for i, cand := range s.Candidates {
		out := cand
		if out.Score == 0 {
			base := 60 + 5*(len(s.Candidates)-1-i)
			boost := 0
			content := strings.ToLower(cand.Source + " " + cand.Content)
			for _, w := range queryWords {
				if len(w) > 3 && strings.Contains(content, w) {
					boost = 20
					break
				}
			}
			out.Score = clampScore(base + boost)
		}
		scored = append(scored, out)
	}
	return domain.AbilityResult{Candidates: scored}
}

func (c *Common) generateResponse(s domain.AbilitySnapshot) domain.AbilityResult {
	name := s.CustomerName
	if name == "" {
		name = "Customer"
	}

	var body string
	switch {
	case s.BestSolutionScore >= 90 && !s.EscalationRequired:
		body = fmt.Sprintf("Dear %s, I've found a solution to your inquiry. Based on our knowledge base, here's how we can help you resolve this issue.", name)
	case s.EscalationRequired:
		body = fmt.Sprintf("Dear %s, Thank you for contacting us. Your request has been forwarded to our specialist team who will get back to you within 24 hours.", name)
	default:
		body = fmt.Sprintf("Dear %s, Thank you for your inquiry. We're currently reviewing your request and will provide a detailed response soon.", name)
	}
	return domain.AbilityResult{Response: body}
}

func (c *Common) notifyCustomer(s domain.AbilitySnapshot) domain.AbilityResult {
	return domain.AbilityResult{
		Action: &domain.ActionRecord{
			Ability: "notify_customer",
			Backend: string(domain.BackendCommon),
			Status:  "sent",
			Detail:  fmt.Sprintf("email to %s re: %s", s.Email, s.TicketID),
			AtUnix:  c.Now().Unix(),
		},
	}
}

func (c *Common) logAction(s domain.AbilitySnapshot) domain.AbilityResult {
	return domain.AbilityResult{
		Action: &domain.ActionRecord{
			Ability: "log_action",
			Backend: string(domain.BackendCommon),
			Status:  "logged",
			Detail:  fmt.Sprintf("ticket %s status %s", s.TicketID, s.TicketStatus),
			AtUnix:  c.Now().Unix(),
		},
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
