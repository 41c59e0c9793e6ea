package apply

import (
	"time"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
)

// State is the apply run state machine. Transitions are strictly forward:
// PENDING -> VALIDATING -> EXECUTING -> COMPLETED or ABORTED.
type State string

// Apply run states.
const (
	StatePending    State = "PENDING"
	StateValidating State = "VALIDATING"
	StateExecuting  State = "EXECUTING"
	StateCompleted  State = "COMPLETED"
	StateAborted    State = "ABORTED"
)

// Outcome is the terminal disposition of one operation.
type Outcome string

// Per-operation outcomes.
const (
	OutcomeApplied Outcome = "APPLIED"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeAborted Outcome = "ABORTED"
)

// Failure and skip reason codes recorded on execution results.
const (
	ReasonMissingEntity        = "MISSING_ENTITY"
	ReasonFetchError           = "FETCH_ERROR"
	ReasonPreconditionMismatch = "PRECONDITION_MISMATCH"
	ReasonPreconditionError    = "PRECONDITION_ERROR"
	ReasonMutationError        = "MUTATION_ERROR"
	ReasonTimeout              = "TIMEOUT"
	ReasonCancelled            = "CANCELLED"
	ReasonPlanAborted          = "PLAN_ABORTED"
)

// ExecutionResult is the audit record for one operation. LiveStateBefore is
// captured before the mutation so a RESTORE_BEFORE rollback can be built from
// the report alone.
type ExecutionResult struct {
	OpID            types.OpID      `json:"op_id"`
	OpType          plan.OpType     `json:"op_type"`
	EntityRef       types.EntityRef `json:"entity_ref"`
	Outcome         Outcome         `json:"outcome"`
	Reason          string          `json:"reason,omitempty"`
	Detail          []string        `json:"detail,omitempty"`
	LiveStateBefore map[string]any  `json:"live_state_before,omitempty"`
	LiveStateAfter  map[string]any  `json:"live_state_after,omitempty"`
	Error           string          `json:"error,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Report is the full record of one apply run. A report is produced for every
// run, including runs refused during validation.
type Report struct {
	ApplyID     types.ApplyID     `json:"apply_id"`
	PlanID      types.PlanID      `json:"plan_id"`
	SnapshotID  types.SnapshotID  `json:"snapshot_id"`
	Mode        plan.Mode         `json:"mode"`
	State       State             `json:"state"`
	StartedUTC  time.Time         `json:"started_utc"`
	FinishedUTC time.Time         `json:"finished_utc"`
	AbortReason string            `json:"abort_reason,omitempty"`
	Results     []ExecutionResult `json:"results"`
	Counts      map[Outcome]int   `json:"counts"`
}

// Result returns the execution result for the given operation, or nil.
func (r *Report) Result(id types.OpID) *ExecutionResult {
	for i := range r.Results {
		if r.Results[i].OpID == id {
			return &r.Results[i]
		}
	}
	return nil
}

func (r *Report) record(res ExecutionResult) {
	r.Results = append(r.Results, res)
	r.Counts[res.Outcome]++
}

// Succeeded reports whether the run completed with no failed or aborted
// operations.
func (r *Report) Succeeded() bool {
	return r.State == StateCompleted && r.Counts[OutcomeFailed] == 0 && r.Counts[OutcomeAborted] == 0
}
