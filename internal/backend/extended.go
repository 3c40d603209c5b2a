package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// KBEntry is one knowledge-base article the extended backend can surface.
type KBEntry struct {
	Title    string
	Content  string
	Category string
}

// DefaultKB is the seed knowledge base used when none is configured.
var DefaultKB = []KBEntry{
	{Title: "How to track your order status", Content: "You can track your order by logging into your account.", Category: "orders"},
	{Title: "Resolving payment issues", Content: "If you're experiencing payment problems, verify your billing details.", Category: "payments"},
	{Title: "Account access troubleshooting", Content: "For account access issues, reset your password from the login page.", Category: "account"},
}

var accountNumberRe = regexp.MustCompile(`\b\d{6,}\b`)

// Extended is the in-process extended backend: domain-specific lookups
// against the knowledge base and the ticket system. Its ticket table is the
// only shared mutable session state, so it is guarded for concurrent runs.
type Extended struct {
	kb []KBEntry

	mu      sync.Mutex
	tickets map[string]domain.TicketStatus

	Now func() time.Time
}

// NewExtended creates the extended backend over the given knowledge base.
// An empty kb falls back to DefaultKB.
func NewExtended(kb []KBEntry) *Extended {
	if len(kb) == 0 {
		kb = DefaultKB
	}
	return &Extended{
		kb:      kb,
		tickets: make(map[string]domain.TicketStatus),
		Now:     time.Now,
	}
}

// ID returns the backend identifier.
func (e *Extended) ID() domain.BackendID {
	return domain.BackendExtended
}

// TicketStatus reports the last status written for a ticket, if any.
func (e *Extended) TicketStatus(ticketID string) (domain.TicketStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.tickets[ticketID]
	return st, ok
}

// Invoke executes an extended-backend ability against the input slice.
func (e *Extended) Invoke(ctx context.Context, req domain.AbilityRequest) (domain.AbilityResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.AbilityResult{}, err
	}

	switch req.Ability {
	case "extract_entities":
		return e.extractEntities(req.Snapshot), nil
	case "enrich_records":
		return e.enrichRecords(req.Snapshot), nil
	case "clarify_question":
		return e.clarifyQuestion(req.Snapshot), nil
	case "knowledge_base_search":
		return e.searchKB(req.Snapshot), nil
	case "update_ticket":
		return e.updateTicket(req.Snapshot), nil
	case "close_ticket":
		return e.closeTicket(req.Snapshot), nil
	case "execute_api_calls":
		return e.executeAPICalls(req.Snapshot), nil
	default:
		return domain.AbilityResult{}, fmt.Errorf("extended backend does not implement %q", req.Ability)
	}
}

func (e *Extended) extractEntities(s domain.AbilitySnapshot) domain.AbilityResult {
	entities := make(map[string]string)

	query := strings.ToLower(s.Query)
	for _, product := range []string{"order", "account", "payment", "subscription", "service"} {
		if strings.Contains(query, product) {
			entities["product"] = product
			break
		}
	}
	if m := accountNumberRe.FindString(s.Query); m != "" {
		entities["account_number"] = m
	}
	return domain.AbilityResult{Entities: entities}
}

func (e *Extended) enrichRecords(s domain.AbilitySnapshot) domain.AbilityResult {
	level := s.PriorityLevel
	if s.Normalized != nil {
		level = s.Normalized.PriorityLevel
	}
	slaTarget := "48h"
	if level >= 3 {
		slaTarget = "24h"
	}
	return domain.AbilityResult{
		Enriched: &domain.EnrichedRecord{
			CustomerTier:    "standard",
			PreviousTickets: 3,
			SLATarget:       slaTarget,
			AccountStatus:   "active",
		},
	}
}

func (e *Extended) clarifyQuestion(s domain.AbilitySnapshot) domain.AbilityResult {
	if _, ok := s.Entities["account_number"]; !ok {
		return domain.AbilityResult{Question: "Could you please provide your account number?"}
	}
	if strings.Contains(strings.ToLower(s.Query), "order") && !strings.ContainsAny(s.Query, "0123456789") {
		return domain.AbilityResult{Question: "What is your order number?"}
	}
	return domain.AbilityResult{Question: "Could you provide more details about your specific issue?"}
}

// searchKB returns candidates whose title or content share a term with the
// effective query (clarification response merged in when present), ranked
// with decreasing scores.
func (e *Extended) searchKB(s domain.AbilitySnapshot) domain.AbilityResult {
	query := s.Query
	if s.ClarificationResponse != "" {
		query += " " + s.ClarificationResponse
	}
	words := strings.Fields(strings.ToLower(query))

	var candidates []domain.SolutionCandidate
	for _, entry := range e.kb {
		haystack := strings.ToLower(entry.Title + " " + entry.Content + " " + entry.Category)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(haystack, w) {
				candidates = append(candidates, domain.SolutionCandidate{
					Source:  entry.Title,
					Content: entry.Content,
					Score:   clampScore(92 - 7*len(candidates)),
				})
				break
			}
		}
	}
	return domain.AbilityResult{Candidates: candidates}
}

func (e *Extended) updateTicket(s domain.AbilitySnapshot) domain.AbilityResult {
	status := domain.TicketResolved
	if s.EscalationRequired {
		status = domain.TicketEscalated
	}

	e.mu.Lock()
	e.tickets[s.TicketID] = status
	e.mu.Unlock()

	return domain.AbilityResult{TicketStatus: status}
}

func (e *Extended) closeTicket(s domain.AbilitySnapshot) domain.AbilityResult {
	e.mu.Lock()
	e.tickets[s.TicketID] = domain.TicketResolved
	e.mu.Unlock()

	return domain.AbilityResult{
		TicketStatus: domain.TicketResolved,
		Note:         "ticket closed: automated resolution",
	}
}

func (e *Extended) executeAPICalls(s domain.AbilitySnapshot) domain.AbilityResult {
	detail := "crm_system: update_customer_record"
	if s.EscalationRequired {
		detail = "notification_service: notify_specialist_team; " + detail
	}
	return domain.AbilityResult{
		Action: &domain.ActionRecord{
			Ability: "execute_api_calls",
			Backend: string(domain.BackendExtended),
			Status:  "success",
			Detail:  detail,
			AtUnix:  e.Now().Unix(),
		},
	}
}
