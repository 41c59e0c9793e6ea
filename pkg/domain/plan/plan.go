package plan

import (
	"fmt"
	"time"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// PlanVersion is the plan file format version this engine reads and writes.
const PlanVersion = "C1.1"

// Mode controls whether a plan is inert or armed for execution. Every plan is
// born in DRY_RUN; promotion to APPLY is a deliberate, recorded step.
type Mode string

// Plan modes.
const (
	ModeDryRun Mode = "DRY_RUN"
	ModeApply  Mode = "APPLY"
)

// IsValid returns true if the mode is a known plan mode.
func (m Mode) IsValid() bool {
	return m == ModeDryRun || m == ModeApply
}

// Sources records the inputs a plan was derived from, for later audit.
type Sources struct {
	SnapshotDir    string   `json:"snapshot_dir"`
	RuleConfigPath string   `json:"rule_config_path,omitempty"`
	RuleIDs        []string `json:"rule_ids"`
}

// PlanContext carries account-level context that rules and reviewers need.
type PlanContext struct {
	AccountID          string   `json:"account_id,omitempty"`
	MerchantID         string   `json:"merchant_id,omitempty"`
	BrandTerms         []string `json:"brand_terms,omitempty"`
	ManufacturerBrands []string `json:"manufacturer_brands,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// Integrity holds content hashes over the plan body so tampering between
// review and apply is detectable.
type Integrity struct {
	Algorithm        string `json:"algorithm"`
	OperationsSHA256 string `json:"operations_sha256"`
	SnapshotSHA256   string `json:"snapshot_sha256,omitempty"`
	GeneratedBy      string `json:"generated_by"`
}

// Summary is the reviewer-facing digest of the plan.
type Summary struct {
	TotalOperations   int            `json:"total_operations"`
	TotalFindings     int            `json:"total_findings"`
	OpsByType         map[OpType]int `json:"operations_by_type"`
	OpsByRisk         map[string]int `json:"operations_by_risk"`
	PlatformsAffected []string       `json:"platforms_affected"`
	CampaignsAffected []string       `json:"campaigns_affected"`
	// RiskScore is the level of the riskiest operation in the plan.
	RiskScore           RiskLevel    `json:"risk_score"`
	RiskSummary         string       `json:"risk_summary"`
	RequiresApproval    bool         `json:"requires_approval"`
	ApprovalRequiredOps []types.OpID `json:"approval_required_ops"`
	Findings            []Finding    `json:"findings"`
}

// Plan is the reviewable, immutable-by-default change document. After
// assembly, only Mode, Approvals, and Revision may change; any edit to the
// operations list requires building a new plan from a fresh snapshot.
type Plan struct {
	PlanID          types.PlanID     `json:"plan_id"`
	PlanVersion     string           `json:"plan_version"`
	CreatedUTC      time.Time        `json:"created_utc"`
	SnapshotID      types.SnapshotID `json:"snapshot_id"`
	SnapshotVersion string           `json:"snapshot_version"`
	Sources         Sources          `json:"sources"`
	Mode            Mode             `json:"mode"`
	PlanContext     PlanContext      `json:"plan_context"`
	Guardrails      Guardrails       `json:"guardrails"`
	Summary         Summary          `json:"summary"`
	Operations      []Operation      `json:"operations"`
	Approvals       Approvals        `json:"approvals"`
	Integrity       Integrity        `json:"integrity"`
	// Revision starts at 0 and is bumped whenever the mutable surface
	// changes in a way that invalidates prior approvals.
	Revision int `json:"revision"`
}

// Operation returns the operation with the given id, or nil.
func (p *Plan) Operation(id types.OpID) *Operation {
	for i := range p.Operations {
		if p.Operations[i].OpID == id {
			return &p.Operations[i]
		}
	}
	return nil
}

// PromoteToApply arms the plan for execution. Promotion requires a plan-level
// approval granted at the current revision.
func (p *Plan) PromoteToApply() error {
	if p.Mode == ModeApply {
		return fmt.Errorf("plan %s is already in APPLY mode", p.PlanID)
	}
	if !p.Approvals.PlanApproved || p.Approvals.PlanRevision != p.Revision {
		return fmt.Errorf("plan %s cannot be promoted without a current plan approval", p.PlanID)
	}
	p.Mode = ModeApply
	return nil
}

// Approve records the plan-level approval at the current revision.
func (p *Plan) Approve(by, notes string, at time.Time) error {
	if by == "" {
		return fmt.Errorf("plan approval requires an approver identity")
	}
	p.Approvals.PlanApproved = true
	p.Approvals.ApprovedBy = by
	p.Approvals.ApprovedAt = at
	p.Approvals.ApprovalNotes = notes
	p.Approvals.PlanRevision = p.Revision
	return nil
}

// ApproveOperation records a per-operation approval at the current revision
// and mirrors it onto the operation for reviewer-facing output.
func (p *Plan) ApproveOperation(id types.OpID, by, notes string, at time.Time) error {
	if by == "" {
		return fmt.Errorf("operation approval requires an approver identity")
	}
	op := p.Operation(id)
	if op == nil {
		return fmt.Errorf("plan %s has no operation %s", p.PlanID, id)
	}
	if err := p.Approvals.approveOperation(id, by, notes, p.Revision, at); err != nil {
		return err
	}
	op.Approved = true
	op.ApprovalNotes = notes
	return nil
}

// Revise bumps the revision, invalidating every approval granted so far.
// Called by edits to the mutable surface that must force re-review, such as
// changing guardrail overrides before apply.
func (p *Plan) Revise() {
	p.Revision++
}

// ApprovalComplete reports whether the plan-level approval and every required
// per-operation approval are present and current.
func (p *Plan) ApprovalComplete() bool {
	if !p.Approvals.PlanApproved || p.Approvals.PlanRevision != p.Revision {
		return false
	}
	for _, id := range p.Approvals.OperationsRequiringApproval {
		if !p.Approvals.OperationApproved(id, p.Revision) {
			return false
		}
	}
	return true
}
