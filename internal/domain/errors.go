package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Payload / Registry errors (-32010 to -32029) ----

var (
	ErrInvalidPayload = &EngineError{Code: -32010, Message: "invalid ticket payload"}
	ErrUnknownAbility = &EngineError{Code: -32011, Message: "ability is not registered"}
	ErrInvalidStage   = &EngineError{Code: -32012, Message: "invalid stage value"}
)

// ---- Run / state machine errors (-32030 to -32059) ----

var (
	ErrRunNotFound    = &EngineError{Code: -32030, Message: "workflow run not found"}
	ErrRunAlreadyDone = &EngineError{Code: -32031, Message: "workflow run already terminal"}
	ErrNoSuspendedRun = &EngineError{Code: -32032, Message: "no suspended run for ticket"}
	ErrDuplicateRun   = &EngineError{Code: -32033, Message: "run already exists for ticket"}
	ErrOptimisticLock = &EngineError{Code: -32034, Message: "optimistic lock conflict: run state was modified concurrently"}
	ErrRunSuspended   = &EngineError{Code: -32035, Message: "run is suspended awaiting clarification"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSnapshotCorrupt = &EngineError{Code: -32134, Message: "context snapshot checksum mismatch"}
	ErrConfigInvalid   = &EngineError{Code: -32136, Message: "invalid configuration"}
)

// ---- Guard errors (-32100 to -32129) ----

var (
	ErrRateLimitExceeded = &EngineError{Code: -32103, Message: "rate limit exceeded"}
)

// BackendError reports a failed ability call on an execution backend. It is
// recoverable: the stage executor decides whether to retry, skip, or abort.
type BackendError struct {
	Backend BackendID
	Ability string
	Cause   error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: ability %s: %v", e.Backend, e.Ability, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// BackendTimeout reports an ability call that did not complete in time.
type BackendTimeout struct {
	Backend BackendID
	Ability string
}

// Error implements the error interface.
func (e *BackendTimeout) Error() string {
	return fmt.Sprintf("backend %s: ability %s: timed out", e.Backend, e.Ability)
}
