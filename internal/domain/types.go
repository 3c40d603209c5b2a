// Package domain defines the core types for the Ticketflow engine workflow.
package domain

import "strings"

// Stage represents one of the 11 fixed workflow stages.
type Stage string

const (
	StageIntake     Stage = "INTAKE"
	StageUnderstand Stage = "UNDERSTAND"
	StagePrepare    Stage = "PREPARE"
	StageAsk        Stage = "ASK"
	StageWait       Stage = "WAIT"
	StageRetrieve   Stage = "RETRIEVE"
	StageDecide     Stage = "DECIDE"
	StageUpdate     Stage = "UPDATE"
	StageCreate     Stage = "CREATE"
	StageDo         Stage = "DO"
	StageComplete   Stage = "COMPLETE"
)

// StageOrder is the fixed execution order. No stage may be skipped or reordered.
var StageOrder = []Stage{
	StageIntake, StageUnderstand, StagePrepare, StageAsk, StageWait,
	StageRetrieve, StageDecide, StageUpdate, StageCreate, StageDo,
	StageComplete,
}

// StageIndex returns the position of a stage in StageOrder, or -1 if unknown.
func StageIndex(s Stage) int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// RunStatus represents the current status of a workflow run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSuspended RunStatus = "suspended"
	StatusCompleted RunStatus = "completed"
	StatusAborted   RunStatus = "aborted"
)

// Abort reasons recorded on terminal aborted runs.
const (
	AbortFatalStageFailure = "fatal-stage-failure"
	AbortCancelled         = "cancelled"
)

// Priority is the customer-supplied ticket priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority validates a raw priority value.
func ParsePriority(raw string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	default:
		return "", false
	}
}

// Level maps a priority to its numeric level 1-4.
func (p Priority) Level() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// TicketStatus is the external ticket state written during UPDATE.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketResolved  TicketStatus = "resolved"
	TicketEscalated TicketStatus = "escalated"
)

// TicketPayload is the external input contract. Immutable once accepted at INTAKE.
type TicketPayload struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Query        string `json:"query"`
	Priority     string `json:"priority"`
	TicketID     string `json:"ticket_id"`
}

// SolutionCandidate is a scored knowledge-base result, used during RETRIEVE/DECIDE.
type SolutionCandidate struct {
	Source  string `json:"source"`
	Content string `json:"content"`
	Score   int    `json:"score"`
}

// NormalizedFields holds the standardized ticket fields produced by PREPARE.
type NormalizedFields struct {
	PriorityLevel int    `json:"priority_level"`
	Email         string `json:"email"`
	TicketRef     string `json:"ticket_ref"`
}

// EnrichedRecord carries historical and SLA data added during PREPARE.
type EnrichedRecord struct {
	CustomerTier    string `json:"customer_tier"`
	PreviousTickets int    `json:"previous_tickets"`
	SLATarget       string `json:"sla_target"`
	AccountStatus   string `json:"account_status"`
}

// RiskFlags holds the computed SLA and complexity flags.
type RiskFlags struct {
	SLARiskScore       int  `json:"sla_risk_score"`
	ComplexityScore    int  `json:"complexity_score"`
	AutoEscalate       bool `json:"auto_escalate"`
	RequiresSpecialist bool `json:"requires_specialist"`
}

// ActionRecord is one entry in the actions_taken list. Failed dispatches are
// recorded here too rather than aborting the run.
type ActionRecord struct {
	Ability string `json:"ability"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	AtUnix  int64  `json:"at_unix"`
}

// RunContext is the single mutable aggregate threaded through all stages of
// one workflow run. Fields grow monotonically as stages execute; it is never
// shared across concurrent runs.
type RunContext struct {
	Input TicketPayload `json:"input"`

	EntitiesExtracted map[string]string `json:"entities_extracted,omitempty"`
	Normalized        *NormalizedFields `json:"normalized_fields,omitempty"`
	EnrichedData      *EnrichedRecord   `json:"enriched_data,omitempty"`
	Flags             *RiskFlags        `json:"flags,omitempty"`

	ClarificationRequest  string `json:"clarification_request,omitempty"`
	ClarificationResponse string `json:"clarification_response,omitempty"`

	RetrievedKnowledge []SolutionCandidate `json:"retrieved_knowledge,omitempty"`
	SolutionsEvaluated int                 `json:"solutions_evaluated"`

	BestSolutionScore  int    `json:"best_solution_score"`
	EscalationRequired bool   `json:"escalation_required"`
	EscalationReason   string `json:"escalation_reason,omitempty"`

	TicketStatus      TicketStatus   `json:"ticket_status,omitempty"`
	GeneratedResponse string         `json:"generated_response,omitempty"`
	ActionsTaken      []ActionRecord `json:"actions_taken,omitempty"`

	// StagesCompleted is the append-only audit trail. A stage is appended
	// only after its executor completes without aborting.
	StagesCompleted []Stage `json:"stages_completed"`

	CreatedAtUnix   int64 `json:"created_at_unix"`
	CompletedAtUnix int64 `json:"completed_at_unix,omitempty"`
}

// RunState is the durable record of one workflow run. The context is
// persisted alongside the state machine position so a suspended run can be
// resumed from storage without any in-memory state.
type RunState struct {
	TicketID        string
	CurrentStage    Stage
	Status          RunStatus
	AbortReason     string
	CancelRequested bool
	StateVersion    int64
	LastEventSeq    int64
	Context         RunContext
	UpdatedAtUnix   int64
}

// BackendID identifies one of the two execution backends.
type BackendID string

const (
	BackendCommon   BackendID = "common"
	BackendExtended BackendID = "extended"
)

// Determinism classifies an ability for retry safety. Deterministic
// abilities are pure functions of their input slice and safe to retry;
// model-assisted abilities must not be retried blindly.
type Determinism string

const (
	Deterministic Determinism = "deterministic"
	ModelAssisted Determinism = "model_assisted"
)

// AbilityRequest names the ability to invoke and carries the read-only
// context slice it operates on.
type AbilityRequest struct {
	Ability  string
	Snapshot AbilitySnapshot
}

// AbilitySnapshot is the read-only slice of RunContext handed to an ability
// invocation. Abilities never see or mutate the live context.
type AbilitySnapshot struct {
	CustomerName  string
	Email         string
	Query         string
	Priority      Priority
	PriorityLevel int
	TicketID      string

	Entities   map[string]string
	Normalized *NormalizedFields
	Enriched   *EnrichedRecord
	Flags      *RiskFlags

	ClarificationRequest  string
	ClarificationResponse string

	Candidates         []SolutionCandidate
	BestSolutionScore  int
	EscalationRequired bool
	TicketStatus       TicketStatus
	GeneratedResponse  string
}

// AbilityResult carries whatever an ability produced. Only the fields
// relevant to the invoked ability are populated; the stage executor merges
// them into the run context.
type AbilityResult struct {
	Entities   map[string]string
	Normalized *NormalizedFields
	Enriched   *EnrichedRecord
	Flags      *RiskFlags

	Question string
	Answer   string

	Candidates []SolutionCandidate
	Response   string

	TicketStatus TicketStatus
	Action       *ActionRecord
	Note         string
}

// WorkflowEvent is one entry in the append-only run event log.
type WorkflowEvent struct {
	ID          int64
	TicketID    string
	SeqNo       int64
	Stage       Stage
	EventType   string
	PayloadJSON string
	CreatedAt   int64
}

// ContextSnapshot captures the serialized run context at a stage boundary.
type ContextSnapshot struct {
	ID           int64
	TicketID     string
	Stage        Stage
	SnapshotJSON string
	Checksum     string
	CreatedAt    int64
}

// AuditRecord logs registry, routing, and decision events.
type AuditRecord struct {
	ID           string
	TicketID     string
	Category     string
	Actor        string
	Action       string
	RequestJSON  string
	DecisionJSON string
	Severity     string
	CreatedAt    int64
}

// FinalPayload is the structured output contract returned to the caller,
// including for aborted runs.
type FinalPayload struct {
	Input      TicketPayload   `json:"input"`
	Processing ProcessingBlock `json:"processing"`
	Decisions  DecisionsBlock  `json:"decisions"`
	Output     OutputBlock     `json:"output"`
	Metadata   MetadataBlock   `json:"metadata"`
}

// ProcessingBlock summarizes what the pipeline did.
type ProcessingBlock struct {
	StagesCompleted      []Stage           `json:"stages_completed"`
	EntitiesExtracted    map[string]string `json:"entities_extracted"`
	EnrichedData         *EnrichedRecord   `json:"enriched_data,omitempty"`
	KnowledgeBaseResults int               `json:"knowledge_base_results"`
	SolutionsEvaluated   int               `json:"solutions_evaluated"`
}

// DecisionsBlock summarizes the DECIDE outcome.
type DecisionsBlock struct {
	EscalationRequired bool   `json:"escalation_required"`
	EscalationReason   string `json:"escalation_reason,omitempty"`
	BestSolutionScore  int    `json:"best_solution_score"`
}

// OutputBlock carries the customer-facing result.
type OutputBlock struct {
	GeneratedResponse string         `json:"generated_response"`
	ActionsExecuted   []ActionRecord `json:"actions_executed"`
	FinalStatus       string         `json:"final_status"`
}

// MetadataBlock carries run timing and, for aborted runs, the reason.
type MetadataBlock struct {
	CreatedAtUnix   int64  `json:"created_at_unix"`
	CompletedAtUnix int64  `json:"completed_at_unix,omitempty"`
	AbortReason     string `json:"abort_reason,omitempty"`
}
