package plan

import (
	"fmt"
	"time"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// OperationApproval is one per-operation human approval record.
type OperationApproval struct {
	Approved   bool      `json:"approved"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	ApprovedAt time.Time `json:"approved_at,omitzero"`
	Notes      string    `json:"notes,omitempty"`
	// PlanRevision captures the plan revision the approval was granted
	// against. A revision bump invalidates prior approvals.
	PlanRevision int `json:"plan_revision"`
}

// Approvals holds the plan-level and per-operation approval trail. It starts
// fully unapproved and is updated only by an explicit human-review step —
// never by the rule engine or the assembler.
type Approvals struct {
	PlanApproved  bool      `json:"plan_approved"`
	ApprovedBy    string    `json:"approved_by,omitempty"`
	ApprovedAt    time.Time `json:"approved_at,omitzero"`
	ApprovalNotes string    `json:"approval_notes,omitempty"`
	// PlanRevision captures the revision the plan-level approval covers.
	PlanRevision int `json:"plan_revision"`

	OperationsRequiringApproval []types.OpID                      `json:"operations_requiring_approval"`
	OperationApprovals          map[types.OpID]*OperationApproval `json:"operation_approvals"`
}

// NewApprovals builds the unapproved skeleton for the operations that require
// manual approval under the plan's guardrails.
func NewApprovals(required []types.OpID) Approvals {
	opApprovals := make(map[types.OpID]*OperationApproval, len(required))
	for _, id := range required {
		opApprovals[id] = &OperationApproval{}
	}
	return Approvals{
		OperationsRequiringApproval: required,
		OperationApprovals:          opApprovals,
	}
}

// Requires reports whether the given operation needs an explicit approval.
func (a *Approvals) Requires(id types.OpID) bool {
	for _, r := range a.OperationsRequiringApproval {
		if r == id {
			return true
		}
	}
	return false
}

// OperationApproved reports whether the given operation has a valid approval
// at the given plan revision. Operations that do not require approval are
// trivially approved.
func (a *Approvals) OperationApproved(id types.OpID, revision int) bool {
	if !a.Requires(id) {
		return true
	}
	rec, ok := a.OperationApprovals[id]
	if !ok || rec == nil {
		return false
	}
	return rec.Approved && rec.PlanRevision == revision
}

// approveOperation records a per-operation approval. Called only through
// Plan.ApproveOperation so the plan revision is stamped consistently.
func (a *Approvals) approveOperation(id types.OpID, by, notes string, revision int, at time.Time) error {
	if !a.Requires(id) {
		return fmt.Errorf("operation %s does not require approval", id)
	}
	rec, ok := a.OperationApprovals[id]
	if !ok || rec == nil {
		rec = &OperationApproval{}
		a.OperationApprovals[id] = rec
	}
	rec.Approved = true
	rec.ApprovedBy = by
	rec.ApprovedAt = at
	rec.Notes = notes
	rec.PlanRevision = revision
	return nil
}
