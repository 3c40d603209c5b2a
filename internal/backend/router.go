// Package backend routes ability invocations to one of the two execution
// backends and hosts the in-process implementations of both.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/ability"
	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Invoker executes abilities on one backend. Implementations must be safe
// for concurrent invocation across workflow runs.
type Invoker interface {
	ID() domain.BackendID
	Invoke(ctx context.Context, req domain.AbilityRequest) (domain.AbilityResult, error)
}

// Router dispatches an ability to the backend named by the registry.
// The router never retries; retry policy belongs to the stage executor,
// gated by the ability's determinism class.
type Router struct {
	registry *ability.Registry
	backends map[domain.BackendID]Invoker
	timeout  time.Duration
}

// NewRouter creates a router over the given registry and backends.
func NewRouter(registry *ability.Registry, timeout time.Duration, backends ...Invoker) *Router {
	m := make(map[domain.BackendID]Invoker, len(backends))
	for _, b := range backends {
		m[b.ID()] = b
	}
	return &Router{registry: registry, backends: m, timeout: timeout}
}

// Resolve exposes the registry lookup so callers can gate retries on the
// ability's determinism class.
func (r *Router) Resolve(name string) (ability.Spec, error) {
	return r.registry.Resolve(name)
}

// Invoke resolves the ability, selects its backend, and executes it with the
// configured per-call timeout. Backend failures surface as *BackendError and
// timeouts as *BackendTimeout; both are recoverable to the caller.
func (r *Router) Invoke(ctx context.Context, req domain.AbilityRequest) (domain.AbilityResult, error) {
	spec, err := r.registry.Resolve(req.Ability)
	if err != nil {
		return domain.AbilityResult{}, err
	}

	inv, ok := r.backends[spec.Backend]
	if !ok {
		return domain.AbilityResult{}, domain.NewEngineError(
			domain.ErrConfigInvalid.Code,
			"no invoker wired for backend "+string(spec.Backend),
		)
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := inv.Invoke(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.AbilityResult{}, &domain.BackendTimeout{
				Backend: spec.Backend,
				Ability: req.Ability,
			}
		}
		return domain.AbilityResult{}, &domain.BackendError{
			Backend: spec.Backend,
			Ability: req.Ability,
			Cause:   err,
		}
	}
	return res, nil
}
