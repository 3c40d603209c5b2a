// Package ability maintains the validated lookup table from ability name to
// execution backend and determinism class.
package ability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Spec describes one registered ability.
type Spec struct {
	Name        string
	Backend     domain.BackendID
	Determinism domain.Determinism
	Description string
}

// Registry is a thread-safe registry of ability specifications. Routing is
// decided solely by this table, never by stage logic or name conventions.
type Registry struct {
	mu        sync.RWMutex
	abilities map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{abilities: make(map[string]Spec)}
}

// Register adds an ability spec to the registry.
// Returns an error if an ability with the same name is already registered.
func (r *Registry) Register(spec Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.abilities[spec.Name]; exists {
		return domain.WrapEngineError(
			domain.ErrUnknownAbility.Code,
			fmt.Sprintf("ability %q already registered", spec.Name),
			nil,
		)
	}
	r.abilities[spec.Name] = spec
	return nil
}

// Resolve returns the spec for the named ability, or ErrUnknownAbility.
func (r *Registry) Resolve(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.abilities[name]
	if !ok {
		return Spec{}, domain.WrapEngineError(
			domain.ErrUnknownAbility.Code,
			fmt.Sprintf("ability %q", name),
			nil,
		)
	}
	return spec, nil
}

// List returns all registered ability names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.abilities))
	for name := range r.abilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every spec for a known backend and determinism class.
// Run at startup so an unknown ability is a configuration bug, never a
// runtime surprise.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, spec := range r.abilities {
		if spec.Backend != domain.BackendCommon && spec.Backend != domain.BackendExtended {
			return domain.NewEngineError(
				domain.ErrConfigInvalid.Code,
				fmt.Sprintf("ability %q: unknown backend %q", name, spec.Backend),
			)
		}
		if spec.Determinism != domain.Deterministic && spec.Determinism != domain.ModelAssisted {
			return domain.NewEngineError(
				domain.ErrConfigInvalid.Code,
				fmt.Sprintf("ability %q: unknown determinism class %q", name, spec.Determinism),
			)
		}
	}
	return nil
}

// Defaults returns a registry populated with the full ticket-workflow
// ability surface and its static backend mapping.
func Defaults() *Registry {
	r := NewRegistry()
	for _, spec := range defaultSpecs {
		// Register cannot fail here: the table below has unique names.
		_ = r.Register(spec)
	}
	return r
}

var defaultSpecs = []Spec{
	{Name: "parse_request_text", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "convert unstructured request text to structured data"},
	{Name: "extract_entities", Backend: domain.BackendExtended, Determinism: domain.ModelAssisted, Description: "identify products, accounts, dates"},
	{Name: "normalize_fields", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "standardize priority, email, ticket ref"},
	{Name: "enrich_records", Backend: domain.BackendExtended, Determinism: domain.Deterministic, Description: "add SLA and historical ticket info"},
	{Name: "add_flags_calculations", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "compute SLA risk and complexity flags"},
	{Name: "clarify_question", Backend: domain.BackendExtended, Determinism: domain.ModelAssisted, Description: "draft a clarification question"},
	{Name: "store_answer", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "record the clarification response"},
	{Name: "knowledge_base_search", Backend: domain.BackendExtended, Determinism: domain.Deterministic, Description: "look up candidate solutions"},
	{Name: "store_data", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "attach retrieved candidates to the payload"},
	{Name: "solution_evaluation", Backend: domain.BackendCommon, Determinism: domain.ModelAssisted, Description: "score candidate solutions 0-100"},
	{Name: "update_ticket", Backend: domain.BackendExtended, Determinism: domain.Deterministic, Description: "write ticket status to the ticket system"},
	{Name: "close_ticket", Backend: domain.BackendExtended, Determinism: domain.Deterministic, Description: "mark a resolved ticket closed"},
	{Name: "response_generation", Backend: domain.BackendCommon, Determinism: domain.ModelAssisted, Description: "draft the customer reply"},
	{Name: "notify_customer", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "dispatch the reply notification"},
	{Name: "log_action", Backend: domain.BackendCommon, Determinism: domain.Deterministic, Description: "record the performed actions"},
	{Name: "execute_api_calls", Backend: domain.BackendExtended, Determinism: domain.Deterministic, Description: "trigger CRM and order system actions"},
}
