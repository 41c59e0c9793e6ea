// Package approval implements the human approval gate between a reviewed
// plan and execution. The gate is deliberately dumb: it checks recorded
// facts and never mutates the plan.
package approval

import (
	"fmt"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/guardrail"
)

// Decision is the outcome of the apply gate, with every blocking reason
// listed so the operator can fix them in one pass.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

func (d Decision) Error() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("plan is not applyable: %d blocking reason(s), first: %s", len(d.Reasons), d.Reasons[0])
}

// CanApply decides whether the plan may be handed to the executor. APPLY mode
// is necessary but never sufficient: the plan-level approval must be current,
// every operation the guardrails flag must carry a current approval, and the
// guardrail validation must be clean.
func CanApply(p *plan.Plan, violations []guardrail.Violation) Decision {
	var reasons []string

	if p.Mode != plan.ModeApply {
		reasons = append(reasons, fmt.Sprintf("plan mode is %s, not %s", p.Mode, plan.ModeApply))
	}
	if !p.Approvals.PlanApproved {
		reasons = append(reasons, "plan-level approval is missing")
	} else if p.Approvals.PlanRevision != p.Revision {
		reasons = append(reasons, fmt.Sprintf(
			"plan-level approval was granted at revision %d but the plan is at revision %d",
			p.Approvals.PlanRevision, p.Revision))
	}

	for _, op := range p.Operations {
		if !p.Guardrails.RequiresApproval(op.OpType) {
			continue
		}
		if !p.Approvals.OperationApproved(op.OpID, p.Revision) {
			reasons = append(reasons, fmt.Sprintf("operation %s (%s) lacks a current approval", op.OpID, op.OpType))
		}
	}

	for _, v := range violations {
		reasons = append(reasons, "guardrail violation: "+v.String())
	}

	return Decision{Allowed: len(reasons) == 0, Reasons: reasons}
}

// Check runs guardrail validation and the gate in one call.
func Check(p *plan.Plan) Decision {
	return CanApply(p, guardrail.Validate(p))
}
